package server

import (
	"fmt"
	"net/http"

	"cardano-forge/pkg/cardano"
	"cardano-forge/pkg/forge"
	"cardano-forge/pkg/history"
)

type mintItemRequest struct {
	AssetName string            `json:"asset_name"`
	Metadata  map[string]string `json:"metadata"`
	Quantity  int64             `json:"quantity,omitempty"`
	Receiver  string            `json:"receiver"`
}

type mintRequest struct {
	Course string `json:"course"`
	mintItemRequest
}

type batchMintRequest struct {
	Course string            `json:"course"`
	Items  []mintItemRequest `json:"items"`
}

type updateRequest struct {
	Course    string            `json:"course"`
	AssetName string            `json:"asset_name"`
	Metadata  map[string]string `json:"metadata"`
	TxHash    string            `json:"tx_hash,omitempty"`
}

type burnRequest struct {
	Course    string `json:"course"`
	AssetName string `json:"asset_name"`
	Quantity  int64  `json:"quantity"`
	TxHash    string `json:"tx_hash,omitempty"`
}

func (i *mintItemRequest) validate() error {
	if i.AssetName == "" {
		return fmt.Errorf("asset_name is required")
	}
	if i.Receiver == "" {
		return fmt.Errorf("receiver is required")
	}
	if i.Quantity < 0 {
		return fmt.Errorf("quantity must be positive")
	}
	if i.Quantity == 0 {
		i.Quantity = 1
	}
	return nil
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Course == "" {
		writeError(w, http.StatusBadRequest, "course is required")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.provider.VerifyAddress(r.Context(), req.Receiver) {
		writeError(w, http.StatusBadRequest, "receiver is not a valid address")
		return
	}

	chain, builder, err := s.newBuilder(r.Context(), forge.CourseID(req.Course))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	plan, err := builder.Mint(r.Context(), []cardano.MintItem{{
		AssetName: req.AssetName,
		Metadata:  req.Metadata,
		Quantity:  req.Quantity,
		Receiver:  req.Receiver,
	}})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	txHash, err := s.engine.Execute(r.Context(), plan, s.signer)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.recordAndNotify(r, "mint", forge.CourseID(req.Course), chain.PolicyID, []string{req.AssetName}, txHash)
	writeJSON(w, http.StatusOK, map[string]any{
		"tx_hash":    txHash,
		"policy_id":  chain.PolicyID,
		"asset_name": req.AssetName,
	})
}

func (s *Server) handleBatchMint(w http.ResponseWriter, r *http.Request) {
	var req batchMintRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Course == "" {
		writeError(w, http.StatusBadRequest, "course is required")
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "items must not be empty")
		return
	}
	if len(req.Items) > MaxBatchSize {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("batch size %d exceeds the maximum of %d", len(req.Items), MaxBatchSize))
		return
	}

	items := make([]cardano.MintItem, len(req.Items))
	names := make([]string, len(req.Items))
	for i := range req.Items {
		if err := req.Items[i].validate(); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("item %d: %s", i, err.Error()))
			return
		}
		if !s.provider.VerifyAddress(r.Context(), req.Items[i].Receiver) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("item %d: receiver is not a valid address", i))
			return
		}
		items[i] = cardano.MintItem{
			AssetName: req.Items[i].AssetName,
			Metadata:  req.Items[i].Metadata,
			Quantity:  req.Items[i].Quantity,
			Receiver:  req.Items[i].Receiver,
		}
		names[i] = req.Items[i].AssetName
	}

	chain, builder, err := s.newBuilder(r.Context(), forge.CourseID(req.Course))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	plan, err := builder.Mint(r.Context(), items)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	txHash, err := s.engine.Execute(r.Context(), plan, s.signer)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.recordAndNotify(r, "batch-mint", forge.CourseID(req.Course), chain.PolicyID, names, txHash)
	writeJSON(w, http.StatusOK, map[string]any{
		"tx_hash":      txHash,
		"policy_id":    chain.PolicyID,
		"minted_count": len(names),
		"asset_names":  names,
	})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Course == "" || req.AssetName == "" {
		writeError(w, http.StatusBadRequest, "course and asset_name are required")
		return
	}
	if len(req.Metadata) == 0 {
		writeError(w, http.StatusBadRequest, "metadata is required")
		return
	}

	chain, builder, err := s.newBuilder(r.Context(), forge.CourseID(req.Course))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	plan, err := builder.Update(r.Context(), []cardano.UpdateItem{{
		AssetName: req.AssetName,
		Metadata:  req.Metadata,
		TxHash:    req.TxHash,
	}})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	txHash, err := s.engine.Execute(r.Context(), plan, s.signer)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.recordAndNotify(r, "update", forge.CourseID(req.Course), chain.PolicyID, []string{req.AssetName}, txHash)
	writeJSON(w, http.StatusOK, map[string]any{"tx_hash": txHash})
}

func (s *Server) handleBurn(w http.ResponseWriter, r *http.Request) {
	var req burnRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Course == "" || req.AssetName == "" {
		writeError(w, http.StatusBadRequest, "course and asset_name are required")
		return
	}
	if req.Quantity == 0 {
		writeError(w, http.StatusBadRequest, "quantity must be non-zero")
		return
	}

	chain, builder, err := s.newBuilder(r.Context(), forge.CourseID(req.Course))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	plan, err := builder.Burn(r.Context(), []cardano.BurnItem{{
		AssetName: req.AssetName,
		Quantity:  req.Quantity,
		TxHash:    req.TxHash,
	}})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	txHash, err := s.engine.Execute(r.Context(), plan, s.signer)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.recordAndNotify(r, "burn", forge.CourseID(req.Course), chain.PolicyID, []string{req.AssetName}, txHash)
	writeJSON(w, http.StatusOK, map[string]any{"tx_hash": txHash})
}

func (s *Server) handleContract(w http.ResponseWriter, r *http.Request) {
	course := r.URL.Query().Get("course")
	if course == "" {
		writeError(w, http.StatusBadRequest, "course is required")
		return
	}

	chain, _, err := s.newBuilder(r.Context(), forge.CourseID(course))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"policy_id":     chain.PolicyID,
		"store_address": chain.StoreAddress,
	})
}

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	course := r.URL.Query().Get("course")
	assetName := r.URL.Query().Get("asset_name")
	if course == "" || assetName == "" {
		writeError(w, http.StatusBadRequest, "course and asset_name are required")
		return
	}

	chain, _, err := s.newBuilder(r.Context(), forge.CourseID(course))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	refUTxO, err := chain.UTxOByUnit(r.Context(), chain.RefUnit(assetName))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if refUTxO == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("asset %s does not exist", assetName))
		return
	}
	metadata, err := chain.DatumMetadata(refUTxO, false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	userUnit := chain.UserUnit(assetName)
	resp := map[string]any{
		"policy_id": chain.PolicyID,
		"unit":      userUnit,
		"metadata":  metadata,
	}
	if info, err := s.provider.AssetInfo(r.Context(), userUnit); err == nil {
		resp["quantity"] = info.Quantity
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history is not configured")
		return
	}
	course := r.URL.Query().Get("course")
	if course == "" {
		writeError(w, http.StatusBadRequest, "course is required")
		return
	}

	entries, err := s.history.List(r.Context(), forge.CourseID(course))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) recordAndNotify(r *http.Request, op string, course forge.CourseID, policyID string, names []string, txHash string) {
	s.history.Record(r.Context(), history.Entry{
		Operation:  op,
		Course:     course,
		PolicyID:   forge.PolicyID(policyID),
		AssetNames: names,
		TxHash:     txHash,
	})
	s.notifier.Operation(op, course, names, txHash)
}

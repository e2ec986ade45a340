package handler

import (
	"hash/fnv"
	"log/slog"
	"net/http"

	"streamhub/internal/auth"
)

// Experiment is one configured rollout. Users hash into [0,100); those under
// Rollout get the treatment variant, the rest get control.
type Experiment struct {
	Name    string `json:"name"`
	Variant string `json:"variant"`
	Rollout uint32 `json:"rollout"`
}

type ExperimentHandler struct {
	experiments map[string]Experiment
	logger      *slog.Logger
}

func NewExperimentHandler(experiments []Experiment, logger *slog.Logger) *ExperimentHandler {
	byName := make(map[string]Experiment, len(experiments))
	for _, e := range experiments {
		byName[e.Name] = e
	}
	return &ExperimentHandler{experiments: byName, logger: logger}
}

type assignmentResponse struct {
	Experiment string `json:"experiment"`
	Variant    string `json:"variant"`
	Enrolled   bool   `json:"enrolled"`
}

// GetAssignment handles GET /api/experiments/{name}. Unknown experiments and
// users outside the rollout both come back as a definitive not-enrolled
// answer, which is distinct from the service being unreachable.
func (h *ExperimentHandler) GetAssignment(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	userID := auth.UserID(r.Context())

	exp, ok := h.experiments[name]
	if !ok {
		writeData(w, http.StatusOK, assignmentResponse{Experiment: name})
		return
	}

	if bucket(userID, name) >= exp.Rollout {
		writeData(w, http.StatusOK, assignmentResponse{Experiment: name})
		return
	}

	writeData(w, http.StatusOK, assignmentResponse{
		Experiment: name,
		Variant:    exp.Variant,
		Enrolled:   true,
	})
}

// bucket deterministically places a user in [0,100) for one experiment, so
// assignments are stable across requests without any storage.
func bucket(userID int64, experiment string) uint32 {
	hash := fnv.New32a()
	hash.Write([]byte(experiment))
	hash.Write([]byte{
		byte(userID), byte(userID >> 8), byte(userID >> 16), byte(userID >> 24),
		byte(userID >> 32), byte(userID >> 40), byte(userID >> 48), byte(userID >> 56),
	})
	return hash.Sum32() % 100
}

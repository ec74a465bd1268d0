package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ParseProjectID extracts and validates the project ID from the request path.
// Returns the parsed UUID and true on success, or uuid.Nil and false on error
// (after writing an error response).
// Expects path parameter: pid
func ParseProjectID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "pid", "invalid_project_id", "Invalid project ID format", logger)
}

// ParseSectionID extracts the section ID. Expects path parameter: sid
func ParseSectionID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "sid", "invalid_section_id", "Invalid section ID format", logger)
}

// ParseLineID extracts a material or work line ID. Expects path parameter: lid
func ParseLineID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "lid", "invalid_line_id", "Invalid line ID format", logger)
}

// ParseFactID extracts the fact ID. Expects path parameter: fid
func ParseFactID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "fid", "invalid_fact_id", "Invalid fact ID format", logger)
}

// ParseItemID extracts the item ID. Expects path parameter: iid
func ParseItemID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "iid", "invalid_item_id", "Invalid item ID format", logger)
}

// ParseCanonicalItemID extracts the canonical item ID. Expects path parameter: cid
func ParseCanonicalItemID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "cid", "invalid_canonical_item_id", "Invalid canonical item ID format", logger)
}

// ParseProjectAndSectionIDs extracts and validates both project and section IDs.
// Expects path parameters: pid, sid
func ParseProjectAndSectionIDs(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, uuid.UUID, bool) {
	projectID, ok := ParseProjectID(w, r, logger)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}

	sectionID, ok := ParseSectionID(w, r, logger)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}

	return projectID, sectionID, true
}

// parseUUID is the internal helper that does the actual parsing work.
func parseUUID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (uuid.UUID, bool) {
	idStr := r.PathValue(pathParam)
	id, err := uuid.Parse(idStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, errorCode, errorMessage, logger)
		return uuid.Nil, false
	}
	return id, true
}

// parseUUIDList parses repeated query values, writing 400 on the first bad one.
func parseUUIDList(w http.ResponseWriter, values []string, param string, logger *zap.Logger) ([]uuid.UUID, bool) {
	ids := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_"+param, "Invalid "+param+" format", logger)
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

// queryBool reads a boolean query flag. Anything other than true/1 is false.
func queryBool(r *http.Request, name string) bool {
	switch r.URL.Query().Get(name) {
	case "true", "1":
		return true
	default:
		return false
	}
}

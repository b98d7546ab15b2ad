package handlers

import (
	"net/http"

	"transbot-ops/internal/signature"
)

// VerifyInternal echoes the accepted signature
// @Summary Signature self-test
// @Description Accepts any body signed with the v2 scheme and echoes the verified envelope. Rejections come from the verification middleware as 401.
// @Tags internal
// @Accept json
// @Produce json
// @Security TransbotSignature
// @Param X-Transbot-Company header string false "Company the call acts for"
// @Success 200 {object} map[string]interface{} "{ok, key_id, nonce, ts, signing_required}"
// @Failure 401 {object} map[string]interface{} "verification failure reason"
// @Router /internal/verify [post]
func (h *Handlers) VerifyInternal(w http.ResponseWriter, r *http.Request) {
	verdict, ok := signature.VerdictFromContext(r.Context())
	if !ok || !verdict.OK {
		h.sendJSON(w, http.StatusUnauthorized, map[string]interface{}{"ok": false, "error": string(signature.ReasonMalformed)})
		return
	}

	h.sendJSON(w, http.StatusOK, map[string]interface{}{
		"ok":               true,
		"key_id":           verdict.KeyID,
		"nonce":            verdict.Nonce,
		"ts":               verdict.Timestamp,
		"company_id":       verdict.CompanyID,
		"signing_required": verdict.SigningRequired,
		"body":             verdict.ParsedBody,
	})
}

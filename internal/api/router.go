package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/praisehq/praise/internal/middleware"
	"github.com/praisehq/praise/internal/services"
)

type Router struct {
	store    Store
	auth     *services.AuthService
	periods  *services.PeriodService
	quantify *services.QuantifyService
}

func NewRouter(store Store) *Router {
	return &Router{
		store:    store,
		auth:     services.NewAuthService(store, middleware.SignToken),
		periods:  services.NewPeriodService(store),
		quantify: services.NewQuantifyService(store),
	}
}

// AuthService exposes the router's auth service for bootstrap wiring.
func (rt *Router) AuthService() *services.AuthService { return rt.auth }

func (rt *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/auth/register", rt.handleRegister)           // POST
	mux.HandleFunc("/api/auth/login", rt.handleLogin)                 // POST
	mux.HandleFunc("/api/periods", rt.handlePeriods)                  // GET, POST
	mux.HandleFunc("/api/periods/", rt.handlePeriodScoped)            // see dispatch below
	mux.HandleFunc("/api/praise", rt.handleCreatePraise)              // POST
	mux.HandleFunc("/api/quantifications", rt.handleSubmitScores)     // PUT (batch)
	mux.HandleFunc("/api/quantifications/", rt.handleSubmitScore)     // PUT /api/quantifications/{id}
	mux.HandleFunc("/api/eventlog", rt.handleEventLog)                // GET
	mux.HandleFunc("/api/admin/users/", rt.handleUserRoles)           // PUT /api/admin/users/{id}/roles
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the service error taxonomy onto HTTP statuses. Unknown
// errors stay opaque 500s.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := services.ErrorCode("internal")
	msg := "internal error"
	if se, ok := services.AsServiceError(err); ok {
		code = se.Code
		msg = se.Message
		switch se.Code {
		case services.ErrorInvalid, services.ErrorDuplicateChain:
			status = http.StatusBadRequest
		case services.ErrorUnauthorized:
			status = http.StatusUnauthorized
		case services.ErrorForbidden:
			status = http.StatusForbidden
		case services.ErrorNotFound:
			status = http.StatusNotFound
		case services.ErrorConflict, services.ErrorAlreadyQuantified, services.ErrorPeriodClosed:
			status = http.StatusConflict
		case services.ErrorInsufficientPool, services.ErrorQuantificationIncomplete:
			status = http.StatusUnprocessableEntity
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": msg, "code": code})
}

func (rt *Router) requireUser(w http.ResponseWriter, r *http.Request) (*middleware.Claims, bool) {
	c, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, services.NewUnauthorizedError("authentication required"))
		return nil, false
	}
	return c, true
}

func (rt *Router) requireRole(w http.ResponseWriter, r *http.Request, role string) (*middleware.Claims, bool) {
	c, ok := rt.requireUser(w, r)
	if !ok {
		return nil, false
	}
	if !c.HasRole(role) {
		writeError(w, services.NewForbiddenError("requires role "+role))
		return nil, false
	}
	return c, true
}

// POST /api/auth/register
func (rt *Router) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, services.NewInvalidError(err.Error()))
		return
	}
	res, err := rt.auth.Register(req.Name, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"token": res.Token, "user_id": res.UserID, "roles": res.Roles})
}

// POST /api/auth/login
func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, services.NewInvalidError(err.Error()))
		return
	}
	res, err := rt.auth.Login(req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"token": res.Token, "user_id": res.UserID, "roles": res.Roles})
}

// GET /api/periods lists all periods; POST /api/periods creates one (admin).
func (rt *Router) handlePeriods(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := rt.requireUser(w, r); !ok {
			return
		}
		periods, err := rt.store.ListPeriods()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, periods)
	case http.MethodPost:
		c, ok := rt.requireRole(w, r, services.RoleAdmin)
		if !ok {
			return
		}
		var req struct {
			Name     string                  `json:"name"`
			EndDate  time.Time               `json:"end_date"`
			Settings services.PeriodSettings `json:"settings"`
		}
		// Decoding over the defaults lets a body set only the settings it
		// cares about, including explicit zeroes.
		req.Settings = services.DefaultSettings()
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, services.NewInvalidError(err.Error()))
			return
		}
		period, err := rt.periods.CreatePeriod(req.Name, req.EndDate, req.Settings, c.UID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, period)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// Dispatches /api/periods/{id}[/...]:
//
//	GET  /api/periods/{id}
//	PUT  /api/periods/{id}                     (admin)
//	GET  /api/periods/{id}/praise
//	GET  /api/periods/{id}/poolRequirements    (admin)
//	POST /api/periods/{id}/assign              (admin)
//	POST /api/periods/{id}/close               (admin)
//	PUT  /api/periods/{id}/replaceQuantifier   (admin)
//	GET  /api/periods/{id}/quantifier/{uid}
//	GET  /api/periods/{id}/export?format=praise|receivers (admin)
func (rt *Router) handlePeriodScoped(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/periods/")
	parts := strings.Split(rest, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	id := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			rt.getPeriod(w, r, id)
		case http.MethodPut:
			rt.updatePeriod(w, r, id)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	switch parts[1] {
	case "praise":
		rt.listPeriodPraise(w, r, id)
	case "poolRequirements":
		rt.poolRequirements(w, r, id)
	case "assign":
		rt.assignQuantifiers(w, r, id)
	case "close":
		rt.closePeriod(w, r, id)
	case "replaceQuantifier":
		rt.replaceQuantifier(w, r, id)
	case "quantifier":
		if len(parts) < 3 || parts[2] == "" {
			http.NotFound(w, r)
			return
		}
		rt.listQuantifierAssignments(w, r, id, parts[2])
	case "export":
		rt.exportPeriod(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (rt *Router) getPeriod(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := rt.requireUser(w, r); !ok {
		return
	}
	period, err := rt.store.GetPeriod(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if period == nil {
		writeError(w, services.NewNotFoundError("period not found"))
		return
	}
	writeJSON(w, period)
}

func (rt *Router) updatePeriod(w http.ResponseWriter, r *http.Request, id string) {
	c, ok := rt.requireRole(w, r, services.RoleAdmin)
	if !ok {
		return
	}
	var req struct {
		Name    string     `json:"name"`
		EndDate *time.Time `json:"end_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, services.NewInvalidError(err.Error()))
		return
	}
	period, err := rt.periods.UpdatePeriod(id, req.Name, req.EndDate, c.UID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, period)
}

func (rt *Router) listPeriodPraise(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, ok := rt.requireUser(w, r); !ok {
		return
	}
	praises, err := rt.store.ListPraiseByPeriod(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, praises)
}

func (rt *Router) poolRequirements(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, ok := rt.requireRole(w, r, services.RoleAdmin); !ok {
		return
	}
	req, err := rt.periods.PoolRequirements(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, req)
}

func (rt *Router) assignQuantifiers(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	c, ok := rt.requireRole(w, r, services.RoleAdmin)
	if !ok {
		return
	}
	period, err := rt.periods.AssignQuantifiers(id, c.UID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, period)
}

func (rt *Router) closePeriod(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	c, ok := rt.requireRole(w, r, services.RoleAdmin)
	if !ok {
		return
	}
	period, err := rt.periods.ClosePeriod(id, c.UID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, period)
}

func (rt *Router) replaceQuantifier(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	c, ok := rt.requireRole(w, r, services.RoleAdmin)
	if !ok {
		return
	}
	var req struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, services.NewInvalidError(err.Error()))
		return
	}
	moved, err := rt.periods.ReplaceQuantifier(id, req.From, req.To, c.UID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "moved": moved})
}

func (rt *Router) listQuantifierAssignments(w http.ResponseWriter, r *http.Request, id, uid string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	c, ok := rt.requireUser(w, r)
	if !ok {
		return
	}
	// Quantifiers see only their own assignments; admins see anyone's.
	if c.UID != uid && !c.HasRole(services.RoleAdmin) {
		writeError(w, services.NewForbiddenError("cannot view another quantifier's assignments"))
		return
	}
	out, err := rt.periods.ListQuantifierAssignments(id, uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, out)
}

// exportPeriod serves frozen consensus scores as CSV. Only CLOSED periods
// export; earlier statuses still have mutable scores.
func (rt *Router) exportPeriod(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, ok := rt.requireRole(w, r, services.RoleAdmin); !ok {
		return
	}
	period, err := rt.store.GetPeriod(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if period == nil {
		writeError(w, services.NewNotFoundError("period not found"))
		return
	}
	if period.Status != services.PeriodClosed {
		writeError(w, services.NewConflictError("period is not closed"))
		return
	}
	praises, err := rt.store.ListPraiseByPeriod(id)
	if err != nil {
		writeError(w, err)
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "praise"
	}
	var b []byte
	var name string
	switch format {
	case "praise":
		b, err = services.ExportPraiseCSV(praises)
		name = "praise.csv"
	case "receivers":
		b, err = services.ExportReceiverSummaryCSV(praises)
		name = "receivers.csv"
	default:
		writeError(w, services.NewInvalidError("unsupported format"))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+name)
	_, _ = w.Write(b)
}

// POST /api/praise
func (rt *Router) handleCreatePraise(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	c, ok := rt.requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Giver    string `json:"giver"`
		Receiver string `json:"receiver"`
		Reason   string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, services.NewInvalidError(err.Error()))
		return
	}
	giver := req.Giver
	if giver == "" {
		giver = c.UID
	}
	// Only admins (the bot forwarder) may file praise on behalf of others.
	if giver != c.UID && !c.HasRole(services.RoleAdmin) {
		writeError(w, services.NewForbiddenError("cannot give praise as another user"))
		return
	}
	praise, err := rt.periods.CreatePraise(giver, req.Receiver, req.Reason, c.UID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, praise)
}

// PUT /api/quantifications/{id}
func (rt *Router) handleSubmitScore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	c, ok := rt.requireRole(w, r, services.RoleQuantifier)
	if !ok {
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/quantifications/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	var req struct {
		Score       *int   `json:"score"`
		Dismissed   bool   `json:"dismissed"`
		DuplicateOf string `json:"duplicate_of"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, services.NewInvalidError(err.Error()))
		return
	}
	affected, err := rt.quantify.SubmitScore(services.SubmitScoreInput{
		QuantificationID: id,
		SubmittedBy:      c.UID,
		Score:            req.Score,
		Dismissed:        req.Dismissed,
		DuplicateOf:      req.DuplicateOf,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, affected)
}

// PUT /api/quantifications applies a batch of submissions in order. The
// batch stops at the first failing entry; earlier entries stay applied.
func (rt *Router) handleSubmitScores(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	c, ok := rt.requireRole(w, r, services.RoleQuantifier)
	if !ok {
		return
	}
	var reqs []struct {
		ID          string `json:"id"`
		Score       *int   `json:"score"`
		Dismissed   bool   `json:"dismissed"`
		DuplicateOf string `json:"duplicate_of"`
	}
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		writeError(w, services.NewInvalidError(err.Error()))
		return
	}
	if len(reqs) == 0 {
		writeError(w, services.NewInvalidError("empty batch"))
		return
	}

	seen := map[string]int{}
	var affected []*services.Praise
	for _, req := range reqs {
		out, err := rt.quantify.SubmitScore(services.SubmitScoreInput{
			QuantificationID: req.ID,
			SubmittedBy:      c.UID,
			Score:            req.Score,
			Dismissed:        req.Dismissed,
			DuplicateOf:      req.DuplicateOf,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		// Later entries may touch the same praise again; keep the freshest
		// copy of each.
		for _, p := range out {
			if i, ok := seen[p.ID]; ok {
				affected[i] = p
				continue
			}
			seen[p.ID] = len(affected)
			affected = append(affected, p)
		}
	}
	writeJSON(w, affected)
}

// GET /api/eventlog
func (rt *Router) handleEventLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, ok := rt.requireRole(w, r, services.RoleAdmin); !ok {
		return
	}
	writeJSON(w, rt.store.ListAudit())
}

// PUT /api/admin/users/{id}/roles takes {"role": "...", "revoke": bool}.
func (rt *Router) handleUserRoles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	c, ok := rt.requireRole(w, r, services.RoleAdmin)
	if !ok {
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/admin/users/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "roles" {
		http.NotFound(w, r)
		return
	}
	var req struct {
		Role   string `json:"role"`
		Revoke bool   `json:"revoke"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, services.NewInvalidError(err.Error()))
		return
	}
	var u *services.User
	var err error
	if req.Revoke {
		u, err = rt.auth.RevokeRole(parts[0], req.Role, c.UID)
	} else {
		u, err = rt.auth.GrantRole(parts[0], req.Role, c.UID)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, u)
}

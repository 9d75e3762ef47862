package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"almacena/backend/internal/domain"
	"almacena/backend/internal/service"
	"almacena/backend/internal/store"
)

type API struct {
	service        *service.Service
	auth           *AuthManager
	allowedOrigin  string
	maxUploadBytes int64
	loginLimiter   *attemptLimiter
	csrfSecret     []byte
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string, maxUploadBytes int64) *API {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		// Fall back to a deterministic secret if crypto/rand fails (should not happen in practice).
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	return &API{
		service:        svc,
		auth:           auth,
		allowedOrigin:  allowedOrigin,
		maxUploadBytes: maxUploadBytes,
		loginLimiter:   newAttemptLimiter(5, time.Minute),
		csrfSecret:     csrfSecret,
	}
}

// csrfTokenForHour computes an HMAC-SHA256 token for the given hour bucket
// (expressed as Unix time truncated to the hour). The token is hex-encoded.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

// generateCSRFToken returns a token valid for the current hour bucket.
func (a *API) generateCSRFToken() string {
	now := time.Now().UTC()
	bucket := now.Truncate(time.Hour).Unix()
	return a.csrfTokenForHour(bucket)
}

// validateCSRFToken checks whether the provided token matches the current or
// previous hour bucket, giving a 2-hour validity window.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	now := time.Now().UTC()
	currentBucket := now.Truncate(time.Hour).Unix()
	prevBucket := currentBucket - 3600

	expected1 := a.csrfTokenForHour(currentBucket)
	expected2 := a.csrfTokenForHour(prevBucket)

	return hmac.Equal([]byte(token), []byte(expected1)) ||
		hmac.Equal([]byte(token), []byte(expected2))
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("/api/v1/auth/csrf-token", a.handleCSRFToken)

	mux.HandleFunc("/api/v1/products", a.requireAuth(a.handleProducts, "operator", "admin"))
	mux.HandleFunc("/api/v1/products/", a.requireAuth(a.handleProductActions, "operator", "admin"))
	mux.HandleFunc("/api/v1/warehouses", a.requireAuth(a.handleWarehouses, "operator", "admin"))
	mux.HandleFunc("/api/v1/warehouses/", a.requireAuth(a.handleWarehouseActions, "operator", "admin"))

	mux.HandleFunc("/api/v1/receipts", a.requireAuth(a.handleReceipts, "operator", "admin"))
	mux.HandleFunc("/api/v1/receipts/extract", a.requireAuth(a.handleReceiptExtract, "operator", "admin"))
	mux.HandleFunc("/api/v1/receipts/", a.requireAuth(a.handleReceiptActions, "operator", "admin"))

	mux.HandleFunc("/api/v1/movements", a.requireAuth(a.handleMovements, "operator", "admin"))
	mux.HandleFunc("/api/v1/stock", a.requireAuth(a.handleStock, "operator", "admin"))

	mux.HandleFunc("/api/v1/orders", a.requireAuth(a.handleOrders, "operator", "admin"))
	mux.HandleFunc("/api/v1/orders/", a.requireAuth(a.handleOrderActions, "operator", "admin"))

	mux.HandleFunc("/api/v1/qr-codes", a.requireAuth(a.handleQRCodes, "operator", "admin"))
	mux.HandleFunc("/api/v1/qr-codes/", a.requireAuth(a.handleQRCodeActions, "operator", "admin"))

	mux.HandleFunc("/api/v1/users/operators", a.requireAuth(a.handleOperators, "admin"))
	mux.HandleFunc("/api/v1/reports/inventory", a.requireAuth(a.handleInventoryReport, "admin"))
	mux.HandleFunc("/api/v1/reports/movements", a.requireAuth(a.handleMovementsReport, "admin"))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleCSRFToken returns a stateless CSRF token valid for the current hour bucket.
// Clients must include this token in the X-CSRF-Token header for all mutating requests.
func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

// csrfExemptPaths lists paths that are exempt from CSRF validation.
// Login is excluded because it is called without a prior CSRF token fetch.
var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

// checkCSRF enforces CSRF token validation for state-changing methods (POST/PUT/PATCH).
// Returns false and writes an error response if validation fails.
func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	method := r.Method
	if method != http.MethodPost && method != http.MethodPut && method != http.MethodPatch {
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if !a.validateCSRFToken(token) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		filter := domain.ProductFilter{
			Search:   strings.TrimSpace(r.URL.Query().Get("search")),
			Category: strings.TrimSpace(r.URL.Query().Get("category")),
			Limit:    parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500),
		}
		products, err := a.service.ListProducts(r.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"products": products})
	case http.MethodPost:
		var req domain.ProductCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		product, err := a.service.CreateProduct(r.Context(), req)
		if err != nil {
			writeError(w, serviceErrorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"product": product})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleProductActions(w http.ResponseWriter, r *http.Request) {
	id := pathTail(r.URL.Path, "/api/v1/products/")
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("product id required"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		product, err := a.service.GetProduct(r.Context(), id)
		if err != nil {
			writeError(w, serviceErrorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": product})
	case http.MethodPatch:
		var req domain.ProductUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		updated, err := a.service.UpdateProduct(r.Context(), id, req)
		if err != nil {
			writeError(w, serviceErrorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": updated})
	case http.MethodDelete:
		if err := a.service.DeactivateProduct(r.Context(), id); err != nil {
			writeError(w, serviceErrorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleWarehouses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		warehouses, err := a.service.ListWarehouses(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"warehouses": warehouses})
	case http.MethodPost:
		var req domain.WarehouseCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		warehouse, err := a.service.CreateWarehouse(r.Context(), req)
		if err != nil {
			writeError(w, serviceErrorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"warehouse": warehouse})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleWarehouseActions(w http.ResponseWriter, r *http.Request) {
	id := pathTail(r.URL.Path, "/api/v1/warehouses/")
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("warehouse id required"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		warehouse, err := a.service.GetWarehouse(r.Context(), id)
		if err != nil {
			writeError(w, serviceErrorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"warehouse": warehouse})
	case http.MethodPatch:
		var req domain.WarehouseUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		updated, err := a.service.UpdateWarehouse(r.Context(), id, req)
		if err != nil {
			writeError(w, serviceErrorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"warehouse": updated})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleReceipts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		filter := domain.ReceiptFilter{
			WarehouseID: strings.TrimSpace(r.URL.Query().Get("warehouse_id")),
			Status:      strings.TrimSpace(r.URL.Query().Get("status")),
			Limit:       parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500),
		}
		receipts, err := a.service.ListReceipts(r.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"receipts": receipts})
	case http.MethodPost:
		var req domain.ReceiptCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		receipt, err := a.service.CreateReceipt(r.Context(), req)
		if err != nil {
			writeError(w, serviceErrorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"receipt": receipt})
	default:
		writeMethodNotAllowed(w)
	}
}

// handleReceiptExtract accepts a multipart upload and runs the extraction
// pipeline. The parsed receipt is returned to the client for review; nothing
// is persisted until the client POSTs the reviewed receipt.
func (a *API) handleReceiptExtract(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes)
	if err := r.ParseMultipartForm(a.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid or oversized multipart upload"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("file field required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("failed to read uploaded file"))
		return
	}

	result, err := a.service.ProcessReceiptDocument(r.Context(), header.Filename, data)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleReceiptActions(w http.ResponseWriter, r *http.Request) {
	tail := pathTail(r.URL.Path, "/api/v1/receipts/")
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("receipt id required"))
		return
	}

	if strings.HasSuffix(tail, "/confirm") {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		id := strings.Trim(strings.TrimSuffix(tail, "/confirm"), "/")
		if id == "" {
			writeError(w, http.StatusBadRequest, errors.New("receipt id required"))
			return
		}
		receipt, err := a.service.ConfirmReceipt(r.Context(), id)
		if err != nil {
			writeError(w, serviceErrorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"receipt": receipt})
		return
	}

	switch r.Method {
	case http.MethodGet:
		receipt, err := a.service.GetReceipt(r.Context(), tail)
		if err != nil {
			writeError(w, serviceErrorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"receipt": receipt})
	case http.MethodDelete:
		if err := a.service.DeleteReceipt(r.Context(), tail); err != nil {
			writeError(w, serviceErrorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleMovements(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		filter := domain.MovementFilter{
			ProductID:   strings.TrimSpace(r.URL.Query().Get("product_id")),
			WarehouseID: strings.TrimSpace(r.URL.Query().Get("warehouse_id")),
			Type:        strings.TrimSpace(r.URL.Query().Get("type")),
			Limit:       parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500),
		}
		movements, err := a.service.ListMovements(r.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"movements": movements})
	case http.MethodPost:
		var req domain.MovementCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		movement, err := a.service.CreateMovement(r.Context(), req)
		if err != nil {
			writeError(w, serviceErrorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"movement": movement})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleStock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	warehouseID := strings.TrimSpace(r.URL.Query().Get("warehouse_id"))
	stock, err := a.service.GetStock(r.Context(), warehouseID)
	if err != nil {
		writeError(w, serviceErrorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, stock)
}

func (a *API) handleOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		status := strings.TrimSpace(r.URL.Query().Get("status"))
		limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)
		orders, err := a.service.ListOrders(r.Context(), status, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
	case http.MethodPost:
		var req domain.OrderCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		order, err := a.service.CreateOrder(r.Context(), req)
		if err != nil {
			writeError(w, serviceErrorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"order": order})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleOrderActions(w http.ResponseWriter, r *http.Request) {
	tail := pathTail(r.URL.Path, "/api/v1/orders/")
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("order id required"))
		return
	}

	if strings.HasSuffix(tail, "/status") {
		if r.Method != http.MethodPatch && r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		id := strings.Trim(strings.TrimSuffix(tail, "/status"), "/")
		if id == "" {
			writeError(w, http.StatusBadRequest, errors.New("order id required"))
			return
		}

		var req domain.OrderStatusRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		order, err := a.service.UpdateOrderStatus(r.Context(), id, req.Status)
		if err != nil {
			writeError(w, serviceErrorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"order": order})
		return
	}

	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	order, err := a.service.GetOrder(r.Context(), tail)
	if err != nil {
		writeError(w, serviceErrorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (a *API) handleQRCodes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		entityType := strings.TrimSpace(r.URL.Query().Get("entity_type"))
		limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)
		codes, err := a.service.ListQRCodes(r.Context(), entityType, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"qr_codes": codes})
	case http.MethodPost:
		var req domain.QRCodeCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		code, err := a.service.CreateQRCode(r.Context(), req)
		if err != nil {
			writeError(w, serviceErrorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"qr_code": code})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleQRCodeActions(w http.ResponseWriter, r *http.Request) {
	tail := pathTail(r.URL.Path, "/api/v1/qr-codes/")
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("qr code path required"))
		return
	}

	if strings.HasPrefix(tail, "resolve/") {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		token := strings.Trim(strings.TrimPrefix(tail, "resolve/"), "/")
		if token == "" {
			writeError(w, http.StatusBadRequest, errors.New("qr token required"))
			return
		}
		code, err := a.service.ResolveQRCode(r.Context(), token)
		if err != nil {
			writeError(w, serviceErrorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"qr_code": code})
		return
	}

	if strings.HasSuffix(tail, "/image") {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		token := strings.Trim(strings.TrimSuffix(tail, "/image"), "/")
		if token == "" {
			writeError(w, http.StatusBadRequest, errors.New("qr token required"))
			return
		}
		size := parsePositiveLimit(r.URL.Query().Get("size"), 256, 1024)
		png, err := a.service.QRCodeImage(r.Context(), token, size)
		if err != nil {
			writeError(w, serviceErrorStatus(err), err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(png)
		return
	}

	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w)
		return
	}
	if err := a.service.DeleteQRCode(r.Context(), tail); err != nil {
		writeError(w, serviceErrorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) handleOperators(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		operators := a.auth.ListOperators()
		writeJSON(w, http.StatusOK, map[string]any{"operators": operators})
	case http.MethodPost:
		var req domain.OperatorCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		operator, err := a.auth.CreateOperator(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{"operator": operator})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleInventoryReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	warehouseID := strings.TrimSpace(r.URL.Query().Get("warehouse_id"))
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))

	stock, err := a.service.GetStock(r.Context(), warehouseID)
	if err != nil {
		writeError(w, serviceErrorStatus(err), err)
		return
	}

	switch format {
	case "csv":
		exportCSV(w, "inventory.csv", stockReportHeaders, stockReportRows(stock.Levels))
	case "xlsx":
		exportExcel(w, "Inventory", stockReportHeaders, stockReportRows(stock.Levels))
	default:
		writeJSON(w, http.StatusOK, stock)
	}
}

func (a *API) handleMovementsReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	filter := domain.MovementFilter{
		ProductID:   strings.TrimSpace(r.URL.Query().Get("product_id")),
		WarehouseID: strings.TrimSpace(r.URL.Query().Get("warehouse_id")),
		Type:        strings.TrimSpace(r.URL.Query().Get("type")),
		Limit:       parsePositiveLimit(r.URL.Query().Get("limit"), 500, 2000),
	}
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))

	movements, err := a.service.ListMovements(r.Context(), filter)
	if err != nil {
		writeError(w, serviceErrorStatus(err), err)
		return
	}

	switch format {
	case "csv":
		exportCSV(w, "movements.csv", movementReportHeaders, movementReportRows(movements))
	case "xlsx":
		exportExcel(w, "Movements", movementReportHeaders, movementReportRows(movements))
	default:
		writeJSON(w, http.StatusOK, map[string]any{"movements": movements})
	}
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		// Enforce CSRF protection for all state-changing requests.
		if !a.checkCSRF(w, r) {
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

// serviceErrorStatus maps service and store errors onto HTTP status codes.
func serviceErrorStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrInsufficientStock):
		return http.StatusConflict
	case strings.Contains(strings.ToLower(err.Error()), "admin role required"):
		return http.StatusForbidden
	default:
		return http.StatusUnprocessableEntity
	}
}

func pathTail(path, prefix string) string {
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.Trim(strings.TrimPrefix(path, prefix), "/"))
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// For 5xx responses, return a generic message to avoid leaking internal
	// implementation details (stack traces, SQL errors, file paths, etc.).
	// 4xx responses are user-facing so we return the original error message.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

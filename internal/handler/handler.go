package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/chethans2005/pawPatrol/internal/infrastructure/auth"
	"github.com/chethans2005/pawPatrol/internal/models"
	service "github.com/chethans2005/pawPatrol/internal/services"
	pkgerrors "github.com/chethans2005/pawPatrol/pkg/errors"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

type Handler struct {
	accounts   service.AccountService
	catalog    service.CatalogService
	settlement service.SettlementService
}

func NewHandler(accounts service.AccountService, catalog service.CatalogService, settlement service.SettlementService) *Handler {
	return &Handler{
		accounts:   accounts,
		catalog:    catalog,
		settlement: settlement,
	}
}

type errorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	resp := errorResponse{Error: err.Error()}

	var fundsErr *pkgerrors.InsufficientFundsError
	var stockErr *pkgerrors.InsufficientStockError
	switch {
	case errors.As(err, &fundsErr):
		resp.Details = map[string]string{
			"required": fundsErr.Required.String(),
			"balance":  fundsErr.Balance.String(),
		}
	case errors.As(err, &stockErr):
		resp.Details = map[string]interface{}{
			"item_id":   stockErr.ItemID,
			"requested": stockErr.Requested,
			"available": stockErr.Available,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps the settlement error taxonomy onto HTTP. Validation
// errors are 4xx the caller can fix; conflicts are 409 and safe to
// resubmit; everything else is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pkgerrors.ErrUserNotFound),
		errors.Is(err, pkgerrors.ErrPetNotFound),
		errors.Is(err, pkgerrors.ErrItemNotFound),
		errors.Is(err, pkgerrors.ErrShelterNotFound),
		errors.Is(err, pkgerrors.ErrApplicationNotFound):
		return http.StatusNotFound
	case errors.Is(err, pkgerrors.ErrNotPending),
		errors.Is(err, pkgerrors.ErrPetUnavailable),
		errors.Is(err, pkgerrors.ErrSelfAdoption),
		errors.Is(err, pkgerrors.ErrNoVetRecord),
		errors.Is(err, pkgerrors.ErrInsufficientFunds),
		errors.Is(err, pkgerrors.ErrInsufficientStock),
		errors.Is(err, pkgerrors.ErrInvalidQuantity),
		errors.Is(err, pkgerrors.ErrEmptyOrder),
		errors.Is(err, pkgerrors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, pkgerrors.ErrTxConflict),
		errors.Is(err, pkgerrors.ErrRequestAlreadyProcessed),
		errors.Is(err, pkgerrors.ErrUsernameExists):
		return http.StatusConflict
	case errors.Is(err, pkgerrors.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, pkgerrors.ErrInvalidCredentials):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
	r.HandleFunc("/pets", h.ListPets).Methods("GET")
	r.HandleFunc("/pets/{id:[0-9]+}", h.GetPetDetails).Methods("GET")
	r.HandleFunc("/shop/items", h.ListShopItems).Methods("GET")
	r.HandleFunc("/shelters", h.ListShelters).Methods("GET")
}

func (h *Handler) RegisterProtectedRoutes(r *mux.Router) {
	r.HandleFunc("/adoptions/apply", h.ApplyForAdoption).Methods("POST")
	r.HandleFunc("/adoptions/my-applications", h.GetMyApplications).Methods("GET")
	r.HandleFunc("/adoptions/{id:[0-9]+}/approve", h.ApproveAdoption).Methods("POST")
	r.HandleFunc("/adoptions/{id:[0-9]+}/reject", h.RejectAdoption).Methods("POST")
	r.HandleFunc("/donors/apply", h.SubmitDonorApplication).Methods("POST")
	r.HandleFunc("/donors/{id:[0-9]+}/accept", h.AcceptDonorApplication).Methods("POST")
	r.HandleFunc("/shop/order", h.PlaceOrder).Methods("POST")
	r.HandleFunc("/shop/my-orders", h.GetMyOrders).Methods("GET")
	r.HandleFunc("/vet/add-record", h.AddVetRecord).Methods("POST")
	r.HandleFunc("/wallet/balance", h.GetBalance).Methods("GET")
	r.HandleFunc("/wallet/add-funds", h.AddFunds).Methods("POST")
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Name     string `json:"name"`
		Contact  string `json:"contact"`
		Address  string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	userID, err := h.accounts.Register(r.Context(), service.RegisterInput{
		Username: req.Username,
		Password: req.Password,
		Name:     req.Name,
		Contact:  req.Contact,
		Address:  req.Address,
	})
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]int64{"user_id": userID})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	token, err := h.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) ListPets(w http.ResponseWriter, r *http.Request) {
	shelterID := shelterFilter(r)
	pets, err := h.catalog.ListAvailablePets(r.Context(), shelterID)
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, pets)
}

func (h *Handler) GetPetDetails(w http.ResponseWriter, r *http.Request) {
	petID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	details, err := h.catalog.GetPetDetails(r.Context(), petID)
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, details)
}

func (h *Handler) ListShopItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.ListShopItems(r.Context(), shelterFilter(r))
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, items)
}

func (h *Handler) ListShelters(w http.ResponseWriter, r *http.Request) {
	shelters, err := h.catalog.ListShelters(r.Context())
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, shelters)
}

func (h *Handler) ApplyForAdoption(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}

	var req struct {
		PetID int64 `json:"pet_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.PetID <= 0 {
		h.writeError(w, http.StatusBadRequest, errors.New("pet_id is required"))
		return
	}

	appID, err := h.settlement.ApplyForAdoption(r.Context(), caller, req.PetID)
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]int64{"application_id": appID})
}

func (h *Handler) GetMyApplications(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}

	apps, err := h.accounts.GetMyApplications(r.Context(), caller.UserID)
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, apps)
}

func (h *Handler) ApproveAdoption(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}

	appID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.settlement.ApproveAdoption(r.Context(), caller, appID)
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) RejectAdoption(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}

	appID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.settlement.RejectAdoption(r.Context(), caller, appID, req.Reason); err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

func (h *Handler) SubmitDonorApplication(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}

	var req struct {
		PetName      string `json:"pet_name"`
		Species      string `json:"species"`
		Breed        string `json:"breed"`
		Age          int32  `json:"age"`
		Description  string `json:"description"`
		HealthStatus string `json:"health_status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.HealthStatus == "" {
		req.HealthStatus = "Unknown"
	}

	id, err := h.accounts.SubmitDonorApplication(r.Context(), &models.DonorApplication{
		UserID:       caller.UserID,
		PetName:      req.PetName,
		Species:      req.Species,
		Breed:        req.Breed,
		Age:          req.Age,
		Description:  req.Description,
		HealthStatus: req.HealthStatus,
	})
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]int64{"donor_app_id": id})
}

func (h *Handler) AcceptDonorApplication(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}

	donorAppID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	var req struct {
		ShelterID int64 `json:"shelter_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	petID, err := h.settlement.AcceptDonorApplication(r.Context(), caller, donorAppID, req.ShelterID)
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"pet_id": petID})
}

func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}

	var req struct {
		Lines     []models.OrderLine `json:"lines"`
		RequestID string             `json:"request_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	receipt, err := h.settlement.SettleOrder(r.Context(), caller, req.Lines, req.RequestID)
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusCreated, receipt)
}

func (h *Handler) GetMyOrders(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}

	orders, err := h.accounts.GetMyOrders(r.Context(), caller.UserID)
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) AddVetRecord(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}

	var req struct {
		PetID       int64  `json:"pet_id"`
		CheckupDate string `json:"checkup_date"`
		Remarks     string `json:"remarks"`
		Treatment   string `json:"treatment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	checkupDate, err := time.Parse("2006-01-02", req.CheckupDate)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, errors.New("checkup_date must be YYYY-MM-DD"))
		return
	}

	rec := &models.VetRecord{
		PetID:       req.PetID,
		CheckupDate: checkupDate,
		Remarks:     req.Remarks,
		Treatment:   req.Treatment,
	}
	if err := h.catalog.AddVetRecord(r.Context(), caller, rec); err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]int64{"record_id": rec.ID})
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}

	balance, err := h.accounts.GetBalance(r.Context(), caller.UserID)
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"balance": balance.String()})
}

func (h *Handler) AddFunds(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}

	var req struct {
		Amount string `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, errors.New("amount must be a decimal string"))
		return
	}

	newBalance, err := h.accounts.AddFunds(r.Context(), caller.UserID, amount)
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"balance": newBalance.String()})
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id in path")
	}
	return id, nil
}

func shelterFilter(r *http.Request) *int64 {
	raw := r.URL.Query().Get("shelter_id")
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil
	}
	return &id
}

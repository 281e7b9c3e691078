package v1

import (
	"net/http"

	"qkart-storefront/internal/domain"
	"qkart-storefront/internal/usecase"
	"qkart-storefront/pkg/utils"
)

type CartHandler struct {
	cartUC *usecase.CartUsecase
}

func NewCartHandler(cartUC *usecase.CartUsecase) *CartHandler {
	return &CartHandler{cartUC: cartUC}
}

type addToCartRequest struct {
	ProductID string `json:"productId"`
}

type updateCartRequest struct {
	ProductID string `json:"productId"`
	Delta     int    `json:"delta"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	session, _ := domain.SessionFromContext(r.Context())
	view, err := h.cartUC.ViewCart(r.Context(), session)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, domain.Response{Success: true, Data: view})
}

func (h *CartHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req addToCartRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		writeBadBody(w)
		return
	}

	session, _ := domain.SessionFromContext(r.Context())
	view, err := h.cartUC.AddToCart(r.Context(), session, req.ProductID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, domain.Response{Success: true, Data: view})
}

func (h *CartHandler) UpdateCart(w http.ResponseWriter, r *http.Request) {
	var req updateCartRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		writeBadBody(w)
		return
	}
	if req.Delta == 0 {
		utils.WriteError(w, http.StatusBadRequest, "delta must not be zero")
		return
	}

	session, _ := domain.SessionFromContext(r.Context())
	view, err := h.cartUC.ChangeQuantity(r.Context(), session, req.ProductID, req.Delta)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, domain.Response{Success: true, Data: view})
}

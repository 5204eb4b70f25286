package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"rent-radar/internal/domain"
	"rent-radar/internal/usecase/referrals"
	"rent-radar/internal/usecase/subscribers"
)

const statsCacheTTL = 30 * time.Second

// Handler обслуживает публичное чтение объявлений и приём событий
// подписки от биллинга.
type Handler struct {
	listings    domain.ListingRepo
	subsRepo    domain.SubscriberRepo
	subscribers *subscribers.Service
	referrals   *referrals.Service
	cache       domain.Cache
	adminKey    string
	log         zerolog.Logger
}

// NewHandler создаёт обработчик API. cache может быть nil, тогда
// статистика считается на каждый запрос.
func NewHandler(
	listings domain.ListingRepo,
	subsRepo domain.SubscriberRepo,
	subsSvc *subscribers.Service,
	refs *referrals.Service,
	cache domain.Cache,
	adminKey string,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		listings:    listings,
		subsRepo:    subsRepo,
		subscribers: subsSvc,
		referrals:   refs,
		cache:       cache,
		adminKey:    adminKey,
		log:         logger,
	}
}

// Register навешивает маршруты на роутер.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/listings", h.getListings)
		r.Get("/neighborhoods", h.getNeighborhoods)
		r.Get("/stats", h.getStats)
		r.Get("/verify", h.getVerify)
		r.Group(func(r chi.Router) {
			r.Use(h.requireAdminKey)
			r.Post("/subscriptions", h.postSubscription)
		})
	})
}

func (h *Handler) requireAdminKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.adminKey == "" || r.Header.Get("X-Admin-Key") != h.adminKey {
			h.writeError(w, http.StatusUnauthorized, "неверный ключ доступа")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type listingView struct {
	PostID       string     `json:"post_id"`
	Title        string     `json:"title"`
	URL          string     `json:"url"`
	Price        string     `json:"price,omitempty"`
	Neighborhood string     `json:"neighborhood,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	NotifiedAt   *time.Time `json:"notified_at,omitempty"`
}

func toListingViews(listings []domain.Listing) []listingView {
	views := make([]listingView, 0, len(listings))
	for _, l := range listings {
		views = append(views, listingView{
			PostID:       l.PostID,
			Title:        l.Title,
			URL:          l.URL,
			Price:        l.Price,
			Neighborhood: l.Neighborhood,
			CreatedAt:    l.CreatedAt,
			NotifiedAt:   l.NotifiedAt,
		})
	}
	return views
}

func (h *Handler) getListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := parseIntParam(q.Get("limit"))

	filter := domain.ListingFilter{
		Neighborhood: strings.TrimSpace(q.Get("neighborhood")),
		Keyword:      strings.TrimSpace(q.Get("q")),
		Limit:        limit,
	}
	if v := q.Get("min_price"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.MinPrice = &n
		}
	}
	if v := q.Get("max_price"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.MaxPrice = &n
		}
	}

	var (
		listings []domain.Listing
		err      error
	)
	if filter.MinPrice != nil || filter.MaxPrice != nil || filter.Neighborhood != "" || filter.Keyword != "" {
		listings, err = h.listings.ListFiltered(filter)
	} else {
		listings, err = h.listings.ListRecent(limit)
	}
	if err != nil {
		h.log.Error().Err(err).Msg("api: выборка объявлений не удалась")
		h.writeError(w, http.StatusInternalServerError, "внутренняя ошибка")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"listings": toListingViews(listings)})
}

func (h *Handler) getNeighborhoods(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r.URL.Query().Get("limit"))
	hoods, err := h.listings.ListNeighborhoods(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("api: выборка районов не удалась")
		h.writeError(w, http.StatusInternalServerError, "внутренняя ошибка")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"neighborhoods": hoods})
}

type statsView struct {
	Listings      int `json:"listings"`
	Subscribers   int `json:"subscribers"`
	Neighborhoods int `json:"neighborhoods"`
}

func (h *Handler) getStats(w http.ResponseWriter, _ *http.Request) {
	if h.cache != nil {
		if data, err := h.cache.Get("api:stats"); err == nil && len(data) > 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(data)
			return
		}
	}

	listings, err := h.listings.CountListings()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "внутренняя ошибка")
		return
	}
	subs, err := h.subsRepo.CountSubscribers()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "внутренняя ошибка")
		return
	}
	hoods, err := h.listings.ListNeighborhoods(0)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "внутренняя ошибка")
		return
	}

	stats := statsView{Listings: listings, Subscribers: subs, Neighborhoods: len(hoods)}
	data, err := json.Marshal(stats)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "внутренняя ошибка")
		return
	}
	if h.cache != nil {
		if err := h.cache.Set("api:stats", data, statsCacheTTL); err != nil {
			h.log.Warn().Err(err).Msg("api: статистика не закэширована")
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) getVerify(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		h.writeError(w, http.StatusBadRequest, "не указан токен")
		return
	}
	ok, err := h.subscribers.ConfirmVerification(token)
	if err != nil {
		h.log.Error().Err(err).Msg("api: подтверждение почты не удалось")
		h.writeError(w, http.StatusInternalServerError, "внутренняя ошибка")
		return
	}
	if !ok {
		h.writeError(w, http.StatusNotFound, "токен не найден или уже использован")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"verified": true})
}

type subscriptionRequest struct {
	Tier         string `json:"tier"`
	Lifetime     bool   `json:"lifetime"`
	Channels     string `json:"channels"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	WhatsApp     string `json:"whatsapp"`
	ReferralCode string `json:"referral_code"`
}

type subscriptionResponse struct {
	Created           bool   `json:"created"`
	ReferralCode      string `json:"referral_code,omitempty"`
	VerificationToken string `json:"verification_token,omitempty"`
}

func (h *Handler) postSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "тело запроса не разобрано")
		return
	}

	created, err := h.subscribers.Apply(r.Context(), domain.SubscriptionEvent{
		Tier:         domain.ParseTier(req.Tier),
		Lifetime:     req.Lifetime,
		Channels:     domain.ParseChannels(req.Channels),
		Phone:        strings.TrimSpace(req.Phone),
		Email:        strings.TrimSpace(req.Email),
		WhatsApp:     strings.TrimSpace(req.WhatsApp),
		ReferralCode: strings.TrimSpace(req.ReferralCode),
	})
	if errors.Is(err, domain.ErrNoContact) {
		h.writeError(w, http.StatusBadRequest, "нужен хотя бы один контакт")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("api: событие подписки не применено")
		h.writeError(w, http.StatusInternalServerError, "внутренняя ошибка")
		return
	}

	resp := subscriptionResponse{Created: created}
	if email := strings.TrimSpace(req.Email); email != "" {
		sub, err := h.subsRepo.GetSubscriberByEmail(email)
		if err != nil {
			h.log.Error().Err(err).Str("email", email).Msg("api: подписчик не найден после сохранения")
		} else {
			if code, err := h.referrals.EnsureCode(r.Context(), sub.ID); err != nil {
				h.log.Error().Err(err).Msg("api: реферальный код не выдан")
			} else {
				resp.ReferralCode = code
			}
			if !sub.EmailVerified {
				if token, err := h.subscribers.IssueVerification(email); err != nil {
					h.log.Error().Err(err).Msg("api: токен подтверждения не выдан")
				} else {
					resp.VerificationToken = token
				}
			}
		}
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	h.writeJSON(w, status, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error().Err(err).Msg("api: ответ не записан")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func parseIntParam(raw string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

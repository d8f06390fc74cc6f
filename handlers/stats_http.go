package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"pingwatch/config"
	"pingwatch/core"
	"pingwatch/models/api"
	"pingwatch/usecases"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

// StatsHTTPHandler serves the read-only ping stats API
type StatsHTTPHandler struct {
	pingsUseCase usecases.PingsUseCaseInterface
	guilds       *config.GuildConfig
	logger       *zap.Logger
	now          func() time.Time
}

func NewStatsHTTPHandler(
	pingsUseCase usecases.PingsUseCaseInterface,
	guilds *config.GuildConfig,
	logger *zap.Logger,
) *StatsHTTPHandler {
	return &StatsHTTPHandler{
		pingsUseCase: pingsUseCase,
		guilds:       guilds,
		logger:       logger.Named("stats_http"),
		now:          time.Now,
	}
}

func (h *StatsHTTPHandler) SetupEndpoints(router *mux.Router) {
	router.HandleFunc("/health", h.HandleHealth).Methods(http.MethodGet)
	router.HandleFunc("/guilds/{guildID}/members/{userID}/pings", h.HandleGetMemberPings).Methods(http.MethodGet)
	router.HandleFunc("/guilds/{guildID}/leaderboard", h.HandleGetLeaderboard).Methods(http.MethodGet)
}

func (h *StatsHTTPHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *StatsHTTPHandler) HandleGetMemberPings(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	guildID, userID := vars["guildID"], vars["userID"]

	if !h.guilds.IsAllowed(guildID) {
		h.writeError(w, http.StatusNotFound, "guild not tracked")
		return
	}

	info, err := h.pingsUseCase.GetPingInfo(r.Context(), guildID, userID, h.now())
	if err != nil {
		h.handleUseCaseError(w, err, zap.String("guild_id", guildID), zap.String("user_id", userID))
		return
	}

	h.writeJSONResponse(w, http.StatusOK, api.DomainPingInfoToAPIPingInfo(info))
}

func (h *StatsHTTPHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	guildID := mux.Vars(r)["guildID"]

	if !h.guilds.IsAllowed(guildID) {
		h.writeError(w, http.StatusNotFound, "guild not tracked")
		return
	}

	limit := defaultLeaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, maxLeaderboardLimit)
	}

	records, err := h.pingsUseCase.GetLeaderboard(r.Context(), guildID, limit)
	if err != nil {
		h.handleUseCaseError(w, err, zap.String("guild_id", guildID))
		return
	}

	h.writeJSONResponse(w, http.StatusOK, api.DomainRecordsToAPILeaderboard(guildID, records))
}

func (h *StatsHTTPHandler) handleUseCaseError(w http.ResponseWriter, err error, fields ...zap.Field) {
	switch {
	case errors.Is(err, core.ErrInvalidID):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case core.IsNotFoundError(err):
		h.writeError(w, http.StatusNotFound, "member not found")
	default:
		h.logger.Error("❌ stats request failed", append(fields, zap.Error(err))...)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *StatsHTTPHandler) writeError(w http.ResponseWriter, statusCode int, message string) {
	h.writeJSONResponse(w, statusCode, api.ErrorModel{Error: message})
}

func (h *StatsHTTPHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("❌ Failed to encode JSON response", zap.Error(err))
	}
}

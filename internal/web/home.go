package web

import (
	"context"
	"net/http"

	"module5/portal/internal/apiclient"
	"module5/portal/internal/authctx"
)

const (
	healthStatusOK        = "ok"
	healthFallbackMessage = "백엔드 연결 실패"
)

type HealthKind int

const (
	HealthLoading HealthKind = iota
	HealthOK
	HealthFailed
)

type HealthView struct {
	Kind    HealthKind
	Message string
}

func NewHealthView(st apiclient.HealthStatus) HealthView {
	if st.Status == healthStatusOK {
		return HealthView{Kind: HealthOK, Message: st.Message}
	}
	return HealthView{Kind: HealthFailed, Message: st.Message}
}

func (v HealthView) IsLoading() bool { return v.Kind == HealthLoading }

func (v HealthView) IsOK() bool { return v.Kind == HealthOK }

func (v HealthView) Label() string {
	switch v.Kind {
	case HealthOK:
		return "연결됨"
	case HealthFailed:
		return "연결 실패"
	default:
		return ""
	}
}

type homeView struct {
	Auth   navView
	Health HealthView
}

func (h *handler) home(w http.ResponseWriter, r *http.Request) {
	view := homeView{
		Auth:   navFor(authctx.FromContext(r.Context())),
		Health: h.probeHealth(r.Context()),
	}
	h.render(w, r, http.StatusOK, "home", "홈", view)
}

// probeHealth asks the backend once. Transport and decoding failures become
// a failed view with the fallback message.
func (h *handler) probeHealth(ctx context.Context) HealthView {
	ctx, cancel := context.WithTimeout(ctx, h.healthTimeout)
	defer cancel()

	st, err := h.health.Health(ctx)
	if err != nil {
		h.logger.Debug("health probe failed", "error", err)
		st = apiclient.HealthStatus{Status: "error", Message: healthFallbackMessage}
	}
	return NewHealthView(st)
}

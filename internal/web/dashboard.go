package web

import (
	"net/http"

	"module5/portal/internal/authctx"
)

type dashboardView struct {
	Username string
	Email    string
	Status   string
	JoinedAt string
}

func activeLabel(active bool) string {
	if active {
		return "활성"
	}
	return "비활성"
}

// dashboard is only mounted behind RequireAuth, so the state is Authenticated here.
func (h *handler) dashboard(w http.ResponseWriter, r *http.Request) {
	u, _ := authctx.FromContext(r.Context()).State().User()
	h.render(w, r, http.StatusOK, "dashboard", "대시보드", dashboardView{
		Username: u.Username,
		Email:    u.Email,
		Status:   activeLabel(u.IsActive),
		JoinedAt: FormatKoreanDateTime(u.CreatedAt, h.loc),
	})
}

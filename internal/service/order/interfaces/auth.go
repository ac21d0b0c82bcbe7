package interfaces

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"digigoods/internal/pkg/web"
)

// UserIDHeader 由上游网关在校验令牌后写入
const UserIDHeader = "X-User-ID"

type actingUserKey struct{}

// RequireUser 从请求头取出当前登录用户，缺失或非法时返回 401
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(UserIDHeader)
		id, err := strconv.ParseInt(raw, 10, 64)
		if raw == "" || err != nil || id <= 0 {
			web.WriteError(w, r, http.StatusUnauthorized, "missing or invalid "+UserIDHeader+" header")
			return
		}

		ctx := context.WithValue(r.Context(), actingUserKey{}, id)
		lg := zerolog.Ctx(ctx).With().Int64("acting_user_id", id).Logger()
		next.ServeHTTP(w, r.WithContext(lg.WithContext(ctx)))
	})
}

// ActingUserID 返回 RequireUser 写入的用户 id
func ActingUserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(actingUserKey{}).(int64)
	return id, ok
}

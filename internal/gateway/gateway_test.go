package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"realtime-service/internal/auth"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gatewaySecret = "gateway-test-secret"

func signGatewayToken(t *testing.T, userID string, userType auth.UserType, expiresIn time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":       userID,
		"email":    userID + "@example.com",
		"userType": string(userType),
		"exp":      time.Now().Add(expiresIn).Unix(),
	})
	signed, err := token.SignedString([]byte(gatewaySecret))
	require.NoError(t, err)
	return signed
}

func TestGatewayStatusCountsPerNamespace(t *testing.T) {
	gw := New(Options{JWTSecret: gatewaySecret})
	defer gw.Close()

	require.NoError(t, gw.notifications.ns.admit(newTestConn(gw.notifications.ns, "user-a", auth.UserTypeClient)))
	require.NoError(t, gw.notifications.ns.admit(newTestConn(gw.notifications.ns, "user-b", auth.UserTypeDeveloper)))
	require.NoError(t, gw.messaging.ns.admit(newTestConn(gw.messaging.ns, "user-a", auth.UserTypeClient)))

	counts := gw.Status()
	assert.Equal(t, 3, counts.Total)
	assert.Equal(t, 2, counts.Notifications)
	assert.Equal(t, 1, counts.Messaging)
}

func TestGatewayCloseRejectsFurtherConnections(t *testing.T) {
	gw := New(Options{JWTSecret: gatewaySecret})
	gw.Close()

	assert.True(t, gw.Closed())
	assert.ErrorIs(t, gw.notifications.ns.admit(newTestConn(gw.notifications.ns, "user-a", auth.UserTypeClient)), ErrClosed)

	// Dispatchers stay callable but deliver nothing.
	assert.False(t, gw.Notifications().NotifyUser("user-a", NotificationEnvelope{Title: "t", Message: "m"}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/ws/messaging", nil)
	gw.HandleMessaging(w, r)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGatewayHandshakeRejectionReasons(t *testing.T) {
	gw := New(Options{JWTSecret: gatewaySecret})
	defer gw.Close()

	cases := []struct {
		name   string
		token  string
		reason string
	}{
		{"missing token", "", auth.ReasonNoToken},
		{"garbage token", "not-a-token", auth.ReasonInvalidToken},
		{"expired token", signGatewayToken(t, "user-a", auth.UserTypeClient, -time.Hour), auth.ReasonExpiredToken},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			target := "/ws/notifications"
			if tc.token != "" {
				target += "?token=" + tc.token
			}
			w := httptest.NewRecorder()
			gw.HandleNotifications(w, httptest.NewRequest(http.MethodGet, target, nil))

			assert.Equal(t, http.StatusUnauthorized, w.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.reason, body["error"])
		})
	}
}

func TestGatewayWebSocketSession(t *testing.T) {
	gw := New(Options{JWTSecret: gatewaySecret})
	defer gw.Close()

	srv := httptest.NewServer(http.HandlerFunc(gw.HandleNotifications))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=" + signGatewayToken(t, "user-a", auth.UserTypeDeveloper, time.Hour)
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	readFrame := func() Frame {
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, raw, err := ws.ReadMessage()
		require.NoError(t, err)
		var frame Frame
		require.NoError(t, json.Unmarshal(raw, &frame))
		return frame
	}

	assert.Equal(t, EventNotificationConnected, readFrame().Event)

	unread := readFrame()
	assert.Equal(t, EventNotificationUnreadCountPush, unread.Event)
	var payload map[string]int
	require.NoError(t, json.Unmarshal(unread.Data, &payload))
	assert.Equal(t, 0, payload["count"])

	assert.Equal(t, 1, gw.Status().Notifications)
	assert.True(t, gw.Notifications().IsUserOnline("user-a"))

	require.NoError(t, ws.Close())
	require.Eventually(t, func() bool {
		return gw.Status().Notifications == 0
	}, 2*time.Second, 10*time.Millisecond)
}

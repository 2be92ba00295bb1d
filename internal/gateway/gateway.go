// Package gateway is the real-time connection gateway of the marketplace:
// authenticated WebSocket sessions multiplexed into a notifications and a
// messaging namespace, with per-user connection tracking, room-based fan-out,
// and the dispatcher operations the REST tier pushes events through.
package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"realtime-service/internal/auth"
	"realtime-service/internal/store"

	"github.com/gorilla/websocket"
)

// Options configures a Gateway. Store and status collaborators are optional;
// without them the gateway echoes placeholder state exactly as specified.
type Options struct {
	JWTSecret         string
	Status            StatusMirror
	NotificationStore store.NotificationStore
	MessageStore      store.MessageStore
	CheckOrigin       func(r *http.Request) bool
}

// Gateway owns the transport and both namespace handlers. It is constructed
// once in main and threaded into the HTTP layer; there is no package-level
// instance.
type Gateway struct {
	verifier      *auth.Verifier
	upgrader      websocket.Upgrader
	notifications *Notifications
	messaging     *Messaging
}

// ConnectionCounts is the aggregate connected-user status.
type ConnectionCounts struct {
	Total         int `json:"total"`
	Notifications int `json:"notifications"`
	Messaging     int `json:"messaging"`
}

func New(opts Options) *Gateway {
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = defaultCheckOrigin
	}

	g := &Gateway{
		verifier: auth.NewVerifier(opts.JWTSecret),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		notifications: newNotifications(opts.Status, opts.NotificationStore),
		messaging:     newMessaging(opts.Status, opts.MessageStore),
	}

	go g.notifications.ns.run()
	go g.messaging.ns.run()

	slog.Info("Gateway initialized", "namespaces", []string{"notifications", "messaging"})
	return g
}

// Notifications returns the notification dispatcher.
func (g *Gateway) Notifications() *Notifications { return g.notifications }

// Messaging returns the messaging dispatcher.
func (g *Gateway) Messaging() *Messaging { return g.messaging }

// Status reports connected-user counts, aggregate and per namespace.
func (g *Gateway) Status() ConnectionCounts {
	n := g.notifications.ConnectedCount()
	m := g.messaging.ConnectedCount()
	return ConnectionCounts{
		Total:         n + m,
		Notifications: n,
		Messaging:     m,
	}
}

// Close synchronously tears down both namespaces. No further connections or
// dispatches are accepted afterward.
func (g *Gateway) Close() {
	g.notifications.ns.close()
	g.messaging.ns.close()
	slog.Info("Gateway closed")
}

// Closed reports whether Close has run.
func (g *Gateway) Closed() bool {
	return g.notifications.ns.isClosed() && g.messaging.ns.isClosed()
}

// HandleNotifications upgrades an HTTP request into a notifications-namespace
// session. Authentication runs before the upgrade: a connection is either
// fully authenticated before its first processed event or it never joins.
func (g *Gateway) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	g.serveWS(g.notifications.ns, w, r)
}

// HandleMessaging upgrades an HTTP request into a messaging-namespace session.
func (g *Gateway) HandleMessaging(w http.ResponseWriter, r *http.Request) {
	g.serveWS(g.messaging.ns, w, r)
}

func (g *Gateway) serveWS(ns *namespace, w http.ResponseWriter, r *http.Request) {
	if ns.isClosed() {
		writeJSONError(w, http.StatusServiceUnavailable, "gateway closed")
		return
	}

	cred, err := g.verifier.Verify(auth.TokenFromRequest(r))
	if err != nil {
		reason := auth.Reason(err)
		slog.Warn("Handshake rejected", "namespace", ns.name, "reason", reason)
		writeJSONError(w, http.StatusUnauthorized, reason)
		return
	}

	sock, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "namespace", ns.name, "userID", cred.ID, "error", err)
		return
	}

	conn := newConn(ns, sock, *cred)
	if err := ns.admit(conn); err != nil {
		slog.Error("Connection not admitted", "namespace", ns.name, "userID", cred.ID, "error", err)
		sock.Close()
		return
	}

	go conn.writePump()
	go conn.readPump()
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// defaultCheckOrigin allows the known frontends plus anything configured via
// ALLOWED_ORIGINS, and localhost variations for development.
func defaultCheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	allowedOrigins := []string{
		"http://localhost:3000",
		"https://localhost:3000",
		"http://127.0.0.1:3000",
	}
	if customOrigins := os.Getenv("ALLOWED_ORIGINS"); customOrigins != "" {
		for _, customOrigin := range strings.Split(customOrigins, ",") {
			allowedOrigins = append(allowedOrigins, strings.TrimSpace(customOrigin))
		}
	}

	for _, allowedOrigin := range allowedOrigins {
		if origin == allowedOrigin {
			return true
		}
	}

	return strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1")
}

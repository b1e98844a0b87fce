package server

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/newsrelay/internal/relay"
)

// WebSocketHandler upgrades the request and runs a relay session for the new
// connection. Plain GET requests receive the built-in client page instead.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		s.ClientPageHandler(w, r)
		return
	}

	if !s.trackSession() {
		http.Error(w, "Server is shutting down.", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.sessions.Done()
		s.logger.Warn("WebSocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	transport := relay.NewWSTransport(conn, relay.WSOptions{
		MaxMessageSize: s.cfg.MaxMessageSize,
		PongWait:       s.cfg.PongWait,
		WriteTimeout:   s.cfg.WriteTimeout,
	})
	session := relay.NewSession(relay.NewConnection(transport), s.registry, s.broadcaster, relay.SessionOptions{
		WelcomeMessage:    s.cfg.WelcomeMessage,
		PingInterval:      s.cfg.PingInterval,
		RateLimitBurst:    s.cfg.RateLimit.Burst,
		RateLimitInterval: s.cfg.RateLimit.Interval,
	}, s.logger)

	s.logger.Info("Client connected via WebSocket", "conn_id", session.Conn().String(), "remote_addr", r.RemoteAddr)

	go func() {
		defer s.sessions.Done()
		session.Run(s.sessionCtx)
	}()
}

// HealthHandler reports that the server is running and how many clients are
// connected.
func (s *Server) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintf(w, "News relay is running. Connected clients: %d\n", s.registry.Len())
}

// ClientPageHandler serves an HTML page for trying the relay from a browser.
func (s *Server) ClientPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := fmt.Fprint(w, clientPage); err != nil {
		s.logger.Error("Error writing HTML response", "error", err)
	}
}

const clientPage = `<!DOCTYPE html>
<html>
<head>
    <title>News Relay</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        input[type="text"] { width: 300px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
        button:hover { background-color: #005a87; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>News Relay</h1>

    <div id="status" class="status disconnected">Disconnected</div>

    <div>
        <input type="text" id="messageInput" placeholder="Type a message..." disabled>
        <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
        <button id="connectButton" onclick="toggleConnection()">Connect</button>
    </div>

    <div>
        <input type="text" id="newsInput" placeholder="Publish news...">
        <button onclick="publishNews()">Publish</button>
    </div>

    <div id="messages"></div>

    <script>
        let ws = null;
        const messagesDiv = document.getElementById('messages');
        const messageInput = document.getElementById('messageInput');
        const newsInput = document.getElementById('newsInput');
        const sendButton = document.getElementById('sendButton');
        const connectButton = document.getElementById('connectButton');
        const statusDiv = document.getElementById('status');

        function addMessage(message, color) {
            const el = document.createElement('div');
            el.style.margin = '5px 0';
            el.style.color = color || 'gray';
            el.textContent = message;
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function updateStatus(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            messageInput.disabled = !connected;
            sendButton.disabled = !connected;
            connectButton.textContent = connected ? 'Disconnect' : 'Connect';
        }

        function connect() {
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/');
            ws.onopen = function() { updateStatus(true); };
            ws.onmessage = function(event) { addMessage(event.data, 'green'); };
            ws.onclose = function() { addMessage('Connection closed'); updateStatus(false); ws = null; };
            ws.onerror = function() { addMessage('Connection error'); };
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
            } else {
                connect();
            }
        }

        function sendMessage() {
            const message = messageInput.value.trim();
            if (message && ws && ws.readyState === WebSocket.OPEN) {
                ws.send(message);
                addMessage('You: ' + message, 'blue');
                messageInput.value = '';
            }
        }

        function publishNews() {
            const news = newsInput.value.trim();
            if (!news) { return; }
            fetch('/news', {
                method: 'POST',
                headers: { 'Content-Type': 'application/json' },
                body: JSON.stringify({ news: news })
            }).then(function(resp) { return resp.text(); })
              .then(function(text) { addMessage(text); newsInput.value = ''; });
        }

        messageInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') { sendMessage(); }
        });
    </script>
</body>
</html>`

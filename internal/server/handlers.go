// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, channel statistics, and the built-in keyboard controller page.
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

// WebSocketHandler upgrades the request and attaches the new connection to
// the channel named in its query string. The raw request target is parsed
// so channel names are used exactly as the peer wrote them.
func (s *Relay) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	channel, mode := ParseConnectionParams(r.RequestURI)

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	conn := NewConn(ws, s.hub, r.RemoteAddr, channel, mode, s.cfg)

	// The hub launches the pump goroutines once the connection is registered.
	if !s.hub.Register(conn) {
		log.Printf("Relay is shutting down; rejecting %s", conn)
		conn.closeConnection("WebSocketHandler")
	}
}

// RootHandler serves websocket upgrades on the bare server URL and falls
// back to the health check for plain HTTP requests.
func (s *Relay) RootHandler(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		s.WebSocketHandler(w, r)
		return
	}
	HealthHandler(w, r)
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Robot relay server is running!")
}

// ChannelsHandler reports the number of connections per channel as JSON.
func (s *Relay) ChannelsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	body := struct {
		Channels map[string]int `json:"channels"`
		Total    int            `json:"total"`
	}{
		Channels: s.hub.Registry().Channels(),
		Total:    s.hub.Registry().Len(),
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error writing channels response: %v", err)
	}
}

// ControlPageHandler serves a minimal browser controller. Each bound key
// sends a joint_update for one joint in one direction on the chosen channel.
func ControlPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, controlPage); err != nil {
		log.Printf("Error writing HTML response: %v", err)
	}
}

const controlPage = `<!DOCTYPE html>
<html>
<head>
    <title>Robot Joint Controller</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #log {
            border: 1px solid #ccc;
            height: 240px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
            font-family: monospace;
        }
        table { border-collapse: collapse; }
        td, th { padding: 4px 12px; border: 1px solid #ddd; text-align: center; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>Robot Joint Controller</h1>

    <div id="status" class="status disconnected">Disconnected</div>

    <div>
        <input type="text" id="channel" value="robot-1">
        <button id="connectButton" onclick="toggleConnection()">Connect</button>
    </div>

    <table>
        <tr><th>Joint</th><th>Decrease</th><th>Increase</th><th>Value</th></tr>
        <tbody id="joints"></tbody>
    </table>

    <div id="log"></div>

    <script>
        const bindings = {
            joint1: { decrease: 'Q', increase: 'W' },
            joint2: { decrease: 'A', increase: 'S' },
            joint3: { decrease: 'Z', increase: 'X' },
            joint4: { decrease: 'O', increase: 'P' },
            joint5: { decrease: 'K', increase: 'L' },
            joint6: { decrease: 'N', increase: 'M' }
        };
        const values = { joint1: 0, joint2: 0, joint3: 0, joint4: 0, joint5: 0, joint6: 0 };
        const keyMap = {};
        let ws = null;

        Object.keys(bindings).forEach(function(joint) {
            keyMap[bindings[joint].decrease] = { joint: joint, action: 'decrease' };
            keyMap[bindings[joint].increase] = { joint: joint, action: 'increase' };
            const row = document.createElement('tr');
            row.innerHTML = '<td>' + joint + '</td><td>' + bindings[joint].decrease + '</td><td>' +
                bindings[joint].increase + '</td><td id="value-' + joint + '">0</td>';
            document.getElementById('joints').appendChild(row);
        });

        function addLog(text) {
            const log = document.getElementById('log');
            const entry = document.createElement('div');
            entry.textContent = '[' + new Date().toLocaleTimeString() + '] ' + text;
            log.appendChild(entry);
            while (log.children.length > 100) { log.removeChild(log.firstChild); }
            log.scrollTop = log.scrollHeight;
        }

        function updateStatus(connected) {
            const status = document.getElementById('status');
            status.textContent = connected ? 'Connected' : 'Disconnected';
            status.className = 'status ' + (connected ? 'connected' : 'disconnected');
            document.getElementById('connectButton').textContent = connected ? 'Disconnect' : 'Connect';
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
                return;
            }
            const channel = document.getElementById('channel').value.trim() || 'default';
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws?channel=' + channel + '&mode=controller');
            ws.onopen = function() { updateStatus(true); addLog('Connected as CONTROLLER on ' + channel); };
            ws.onclose = function() { updateStatus(false); addLog('Disconnected'); ws = null; };
            ws.onerror = function() { addLog('Connection error'); };
        }

        document.addEventListener('keydown', function(event) {
            if (event.target.tagName === 'INPUT') return;
            const binding = keyMap[event.key.toUpperCase()];
            if (!binding) return;
            event.preventDefault();

            const delta = binding.action === 'increase' ? 1 : -1;
            values[binding.joint] = Math.max(-100, Math.min(100, values[binding.joint] + delta));
            document.getElementById('value-' + binding.joint).textContent = values[binding.joint];

            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify({
                    type: 'joint_update',
                    joint: binding.joint,
                    value: values[binding.joint],
                    action: binding.action,
                    timestamp: Date.now()
                }));
            }
            if (!event.repeat) {
                addLog(binding.joint + ' ' + binding.action + ' -> ' + values[binding.joint]);
            }
        });
    </script>
</body>
</html>`

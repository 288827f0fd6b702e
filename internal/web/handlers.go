package web

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sort"

	log "github.com/sirupsen/logrus"

	"tetherd/internal/lan"
	"tetherd/pkg/models"
	"tetherd/pkg/utils"
)

// ClientJSON represents a DHCP client in JSON format
type ClientJSON struct {
	models.Client
	IPSort uint32 `json:"ipSort"`
	Named  bool   `json:"named"`
}

// Response is the envelope of every API reply
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// WhitelistRequest represents a whitelist change from the frontend
type WhitelistRequest struct {
	Action string   `json:"action"`
	MACs   []string `json:"macs,omitempty"`
}

// handleLeasesAPI lists the current DHCP clients ordered by address
func (s *Server) handleLeasesAPI(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}

	var clients map[string]models.Client
	if s.monitor != nil {
		clients = s.monitor.Clients()
	} else {
		var err error
		if clients, err = s.core.Leases(); err != nil {
			log.WithError(err).Error("Failed to read DHCP leases")
			writeJSONError(w, "Failed to read leases: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}
	log.WithField("count", len(clients)).Debug("Handling leases API request")

	data := make([]ClientJSON, 0, len(clients))
	for _, client := range clients {
		data = append(data, ClientJSON{
			Client: client,
			IPSort: utils.IPToInt(client.IP),
			Named:  client.HasName(),
		})
	}
	sort.Slice(data, func(i, j int) bool {
		if data[i].IPSort != data[j].IPSort {
			return data[i].IPSort < data[j].IPSort
		}
		return data[i].MAC < data[j].MAC
	})

	writeJSON(w, http.StatusOK, Response{Success: true, Data: data})
}

// handleRunningAPI reports whether a process with the given name is running
func (s *Server) handleRunningAPI(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		writeJSONError(w, "name parameter is required", http.StatusBadRequest)
		return
	}

	running, err := s.core.IsProcessRunning(name)
	if err != nil {
		log.WithError(err).Error("Failed to scan processes")
		writeJSONError(w, "Failed to scan processes: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    map[string]interface{}{"name": name, "running": running},
	})
}

// handleLanAPI returns the LAN network, or moves it on POST with a prefix
func (s *Server) handleLanAPI(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodPost) {
		return
	}

	if r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, Response{
			Success: true,
			Data:    map[string]string{"network": s.core.LanNetwork()},
		})
		return
	}

	prefix := r.FormValue("prefix")
	if prefix == "" {
		writeJSONError(w, "prefix parameter is required", http.StatusBadRequest)
		return
	}

	subnet, err := s.core.WriteLan(prefix)
	if err != nil {
		var stepErr *lan.StepError
		if errors.As(err, &stepErr) && stepErr.Step == lan.StepDerive {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}

		response := Response{Success: false, Error: err.Error()}
		if stepErr != nil {
			response.Data = map[string]interface{}{"committed": stepErr.Committed}
		}
		writeJSON(w, http.StatusInternalServerError, response)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "LAN reconfigured",
		Data: map[string]string{
			"network":   subnet.String(),
			"gateway":   subnet.Gateway.String(),
			"dhcpRange": subnet.DHCPRange(),
		},
	})
}

// handleWlanAPI returns or updates the access point settings. A POST body is
// a JSON object of setting names to values.
func (s *Server) handleWlanAPI(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodPost) {
		return
	}

	if r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, Response{Success: true, Data: s.core.Wlan()})
		return
	}

	var values map[string]string
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		writeJSONError(w, "Invalid JSON data", http.StatusBadRequest)
		return
	}

	changed, err := s.core.WriteWlan(values)
	if err != nil {
		log.WithError(err).Error("Failed to write wlan config")
		writeJSONError(w, "Failed to write wlan config: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    map[string]bool{"changed": changed},
	})
}

// handleDNSAPI returns the upstream DNS servers, or writes them into the
// dnsmasq config on POST
func (s *Server) handleDNSAPI(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodPost) {
		return
	}

	if r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, Response{Success: true, Data: s.core.DNSServers(r.Context())})
		return
	}

	changed, err := s.core.UpdateDNS(r.Context())
	if err != nil {
		log.WithError(err).Error("Failed to update DNS servers")
		writeJSONError(w, "Failed to update DNS servers: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    map[string]bool{"changed": changed},
	})
}

// handleWhitelistAPI handles MAC whitelist requests
func (s *Server) handleWhitelistAPI(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodPost) {
		return
	}

	if r.Method == http.MethodGet {
		s.writeWhitelist(w)
		return
	}

	var req WhitelistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid JSON data", http.StatusBadRequest)
		return
	}

	var err error
	switch req.Action {
	case "enable":
		err = s.core.TouchWhitelist()
	case "disable":
		err = s.core.RemoveWhitelist()
	case "save":
		macs := make([]string, 0, len(req.MACs))
		for _, mac := range req.MACs {
			if _, parseErr := net.ParseMAC(mac); parseErr != nil {
				writeJSONError(w, "Invalid MAC address format: "+mac, http.StatusBadRequest)
				return
			}
			macs = append(macs, utils.NormalizeMAC(mac))
		}
		err = s.core.SaveWhitelist(macs)
	default:
		writeJSONError(w, "Unknown action: "+req.Action, http.StatusBadRequest)
		return
	}

	if err != nil {
		log.WithError(err).WithField("action", req.Action).Error("Failed to update whitelist")
		writeJSONError(w, "Failed to update whitelist: "+err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeWhitelist(w)
}

func (s *Server) writeWhitelist(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]interface{}{
			"enabled": s.core.WhitelistExists(),
			"macs":    s.core.Whitelist(),
		},
	})
}

// handleStatusAPI returns the gateway status
func (s *Server) handleStatusAPI(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: s.core.Status()})
}

// allowMethods writes a 405 and returns false unless r uses one of methods
func allowMethods(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, method := range methods {
		if r.Method == method {
			return true
		}
	}
	writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
	return false
}

func writeJSON(w http.ResponseWriter, statusCode int, response Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.WithError(err).Warn("Failed to encode JSON response")
	}
}

// Helper function to write JSON error responses
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, Response{Success: false, Error: message})
}

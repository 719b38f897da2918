package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"mime"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/jeongseonghan/ofdm-modem/internal/config"
	"github.com/jeongseonghan/ofdm-modem/internal/modem"
	"github.com/jeongseonghan/ofdm-modem/internal/samples"
)

const (
	opModulate   = "modulate"
	opDemodulate = "demodulate"
	opPlay       = "play"

	contentTypeJSON      = "application/json"
	contentTypeContainer = "application/octet-stream"
)

var (
	errBadRequest = errors.New("bad request")
	errNoOutput   = errors.New("audio output disabled")
)

// Output plays modulated samples on an audio device.
type Output interface {
	Play(samples []float64) error
	Devices() ([]Device, error)
}

// Device describes an audio output device.
type Device struct {
	Name              string  `json:"name"`
	MaxOutputChannels int     `json:"maxOutputChannels"`
	DefaultSampleRate float64 `json:"defaultSampleRate"`
	IsDefault         bool    `json:"isDefault"`
}

// Handlers holds the HTTP API handlers.
type Handlers struct {
	pool     *modemPool
	alloc    *modem.Allocation
	wsHub    *WSHub
	metrics  *Metrics
	output   Output
	maxBytes int64
	compress bool
}

// NewHandlers builds the handlers and their modem pool. output may be nil
// when audio is disabled.
func NewHandlers(cfg *config.Config, output Output, metrics *Metrics) (*Handlers, error) {
	pool, err := newModemPool(cfg.Modem, cfg.Server.Workers, metrics)
	if err != nil {
		return nil, fmt.Errorf("modem pool: %w", err)
	}
	return &Handlers{
		pool:     pool,
		alloc:    modem.NewAllocation(pool.cfg),
		wsHub:    NewWSHub(metrics),
		metrics:  metrics,
		output:   output,
		maxBytes: cfg.Server.MaxRequestBytes,
		compress: cfg.Server.Compress,
	}, nil
}

type modulateRequest struct {
	Payload []byte `json:"payload,omitempty"` // base64 in JSON
	Text    string `json:"text,omitempty"`
	Pad     bool   `json:"pad,omitempty"` // zero-fill up to capacity
}

type modulateResponse struct {
	RequestID    string    `json:"requestId"`
	SymbolLength int       `json:"symbolLength"`
	Samples      []float64 `json:"samples"`
}

type demodulateRequest struct {
	Samples []float64 `json:"samples"`
}

type demodulateResponse struct {
	RequestID string `json:"requestId"`
	Payload   []byte `json:"payload"`
	Text      string `json:"text,omitempty"`
}

type configResponse struct {
	NumSubcarriers     int    `json:"numSubcarriers"`
	CyclicPrefixLength int    `json:"cyclicPrefixLength"`
	PilotInterval      int    `json:"pilotInterval"`
	Modulation         string `json:"modulation"`
	Transform          string `json:"transform"`
	DataSubcarriers    int    `json:"dataSubcarriers"`
	PilotSubcarriers   int    `json:"pilotSubcarriers"`
	PayloadCapacity    int    `json:"payloadCapacity"`
	SymbolLength       int    `json:"symbolLength"`
	DataIndices        []int  `json:"dataIndices"`
	PilotIndices       []int  `json:"pilotIndices"`
}

// HandleWebSocket handles WebSocket upgrade requests.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	h.wsHub.AddClient(conn)

	// Drain reads so close frames are noticed
	go func() {
		defer h.wsHub.RemoveClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// HandleModulate turns a payload into one OFDM symbol. The response is
// JSON unless the client accepts the sample container.
func (h *Handlers) HandleModulate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req modulateRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, opModulate, err)
		return
	}
	payload := h.payload(req)

	start := time.Now()
	out, err := h.pool.modulate(r.Context(), payload)
	if err != nil {
		h.fail(w, r, opModulate, err)
		return
	}
	h.record(r, opModulate, len(payload), len(out), start)

	if wantsContainer(r) {
		compress := h.compress || r.URL.Query().Get("compress") == "1"
		data, err := samples.Marshal(h.pool.cfg, out, compress)
		if err != nil {
			h.fail(w, r, opModulate, err)
			return
		}
		w.Header().Set("Content-Type", contentTypeContainer)
		w.Write(data)
		return
	}

	writeJSON(w, http.StatusOK, modulateResponse{
		RequestID:    requestID(r.Context()),
		SymbolLength: len(out),
		Samples:      out,
	})
}

// HandleDemodulate recovers the payload from one symbol, sent either as a
// sample container or as JSON.
func (h *Handlers) HandleDemodulate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var in []float64
	if isContainer(r.Header.Get("Content-Type")) {
		hdr, decoded, err := samples.Read(http.MaxBytesReader(w, r.Body, h.maxBytes))
		if err != nil {
			h.fail(w, r, opDemodulate, err)
			return
		}
		if hdr.Config != h.pool.cfg {
			h.fail(w, r, opDemodulate, fmt.Errorf("%w: container layout %d/%d/%d does not match modem %d/%d/%d",
				modem.ErrInvalidConfig,
				hdr.Config.NumSubcarriers, hdr.Config.CyclicPrefixLength, hdr.Config.PilotInterval,
				h.pool.cfg.NumSubcarriers, h.pool.cfg.CyclicPrefixLength, h.pool.cfg.PilotInterval))
			return
		}
		in = decoded
	} else {
		var req demodulateRequest
		if err := h.decodeJSON(w, r, &req); err != nil {
			h.fail(w, r, opDemodulate, err)
			return
		}
		in = req.Samples
	}

	start := time.Now()
	payload, err := h.pool.demodulate(r.Context(), in)
	if err != nil {
		h.fail(w, r, opDemodulate, err)
		return
	}
	h.record(r, opDemodulate, len(payload), len(in), start)

	resp := demodulateResponse{
		RequestID: requestID(r.Context()),
		Payload:   payload,
	}
	if text := bytes.TrimRight(payload, "\x00"); utf8.Valid(text) {
		resp.Text = string(text)
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandlePlay modulates a payload and plays the symbol on the output device.
func (h *Handlers) HandlePlay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.output == nil {
		h.fail(w, r, opPlay, errNoOutput)
		return
	}

	var req modulateRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, opPlay, err)
		return
	}
	payload := h.payload(req)

	start := time.Now()
	out, err := h.pool.modulate(r.Context(), payload)
	if err != nil {
		h.fail(w, r, opPlay, err)
		return
	}
	if err := h.output.Play(out); err != nil {
		h.fail(w, r, opPlay, err)
		return
	}
	h.record(r, opPlay, len(payload), len(out), start)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"requestId": requestID(r.Context()),
		"status":    "played",
		"samples":   len(out),
	})
}

// HandleConfig reports the symbol layout.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	cfg := h.pool.cfg
	writeJSON(w, http.StatusOK, configResponse{
		NumSubcarriers:     cfg.NumSubcarriers,
		CyclicPrefixLength: cfg.CyclicPrefixLength,
		PilotInterval:      cfg.PilotInterval,
		Modulation:         cfg.Modulation.String(),
		Transform:          h.pool.engine,
		DataSubcarriers:    h.alloc.NumData(),
		PilotSubcarriers:   h.alloc.NumPilots(),
		PayloadCapacity:    cfg.BitsPerOFDMSymbol() / 8,
		SymbolLength:       cfg.SymbolLength(),
		DataIndices:        h.alloc.DataIndices(),
		PilotIndices:       h.alloc.PilotIndices(),
	})
}

// HandleDevices lists audio output devices.
func (h *Handlers) HandleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.output == nil {
		h.fail(w, r, "devices", errNoOutput)
		return
	}
	devices, err := h.output.Devices()
	if err != nil {
		h.fail(w, r, "devices", err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

// payload resolves the request bytes, zero-padding to capacity on request.
func (h *Handlers) payload(req modulateRequest) []byte {
	p := req.Payload
	if len(p) == 0 {
		p = []byte(req.Text)
	}
	capacity := h.pool.cfg.BitsPerOFDMSymbol() / 8
	if req.Pad && len(p) < capacity {
		padded := make([]byte, capacity)
		copy(padded, p)
		p = padded
	}
	return p
}

func (h *Handlers) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body := http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}

func (h *Handlers) record(r *http.Request, op string, payloadBytes, sampleCount int, start time.Time) {
	h.metrics.symbolsTotal.WithLabelValues(op).Inc()
	h.metrics.payloadBytes.WithLabelValues(op).Add(float64(payloadBytes))
	h.wsHub.BroadcastSymbol(SymbolEvent{
		RequestID:    requestID(r.Context()),
		Op:           op,
		PayloadBytes: payloadBytes,
		Samples:      sampleCount,
		DurationMs:   float64(time.Since(start).Microseconds()) / 1000,
	})
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, kind := classify(err)
	h.metrics.errorsTotal.WithLabelValues(op, kind).Inc()
	id := requestID(r.Context())
	log.Printf("[%s] %s failed (%s): %v", id, op, kind, err)
	if status >= http.StatusInternalServerError {
		h.wsHub.BroadcastLog("error", fmt.Sprintf("%s failed: %v", op, err))
	}
	writeJSON(w, status, map[string]string{
		"requestId": id,
		"error":     err.Error(),
	})
}

// classify maps an error to an HTTP status and a metrics label.
func classify(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "request"
	case errors.Is(err, modem.ErrInvalidPayloadLength):
		return http.StatusBadRequest, "payload_length"
	case errors.Is(err, modem.ErrInvalidBufferLength), errors.Is(err, modem.ErrInvalidPointCount):
		return http.StatusBadRequest, "buffer_length"
	case errors.Is(err, modem.ErrInvalidConfig):
		return http.StatusBadRequest, "config"
	case errors.Is(err, samples.ErrBadMagic), errors.Is(err, samples.ErrVersion),
		errors.Is(err, samples.ErrTruncated), errors.Is(err, samples.ErrChecksum),
		errors.Is(err, samples.ErrCompression):
		return http.StatusBadRequest, "container"
	case errors.Is(err, errNoOutput):
		return http.StatusServiceUnavailable, "audio"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "canceled"
	case errors.Is(err, modem.ErrTransform):
		return http.StatusInternalServerError, "transform"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func wantsContainer(r *http.Request) bool {
	if r.URL.Query().Get("format") == "container" {
		return true
	}
	return isContainer(r.Header.Get("Accept"))
}

func isContainer(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == contentTypeContainer
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("JSON encode error: %v", err)
	}
}

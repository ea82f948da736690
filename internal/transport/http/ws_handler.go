package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"cuequiz-service/internal/app"
	"cuequiz-service/internal/domain"
	"cuequiz-service/internal/logging"
	"github.com/gorilla/websocket"
)

const permissionNotice = "Camera permission is required for this demonstration."

type WSHandler struct {
	service        *app.QuizService
	defaultCatalog string
	upgrader       websocket.Upgrader
}

// NewWSHandler builds the websocket endpoint. The request context carries the logger.
func NewWSHandler(service *app.QuizService, defaultCatalog string) *WSHandler {
	return &WSHandler{
		service:        service,
		defaultCatalog: defaultCatalog,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type startPayload struct {
	VideoCapability bool `json:"videoCapability"`
}

type timeUpdatePayload struct {
	CurrentTime float64 `json:"currentTime"`
	Duration    float64 `json:"duration"`
}

type selectPayload struct {
	QuestionID int    `json:"questionId"`
	Value      string `json:"value"`
}

type submitPayload struct {
	QuestionID int `json:"questionId"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type sessionPayload struct {
	ID        string `json:"id"`
	CatalogID string `json:"catalogId"`
}

type messagePayload struct {
	Message string `json:"message"`
}

// reportedGate answers the capability check with what the client probed locally.
type reportedGate struct {
	mu      sync.Mutex
	granted bool
}

func (g *reportedGate) report(granted bool) {
	g.mu.Lock()
	g.granted = granted
	g.mu.Unlock()
}

func (g *reportedGate) RequestVideoCapability(context.Context) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.granted, nil
}

// clientPlayer forwards play commands to the browser's media element.
type clientPlayer struct {
	send chan<- outboundMessage[any]
	done <-chan struct{}
}

func (p *clientPlayer) Play(ctx context.Context) error {
	select {
	case p.send <- outboundMessage[any]{Type: "play", Payload: struct{}{}}:
		return nil
	case <-p.done:
		return errors.New("connection closed")
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.New("send buffer full")
	}
}

// ServeWS upgrades HTTP requests to websockets and drives one quiz session per connection.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())
	catalogID := r.URL.Query().Get("catalogId")
	if catalogID == "" {
		catalogID = h.defaultCatalog
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	gate := &reportedGate{}
	runner, err := h.service.Open(ctx, catalogID, gate, &clientPlayer{send: send, done: closeSignals})
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[messagePayload]{Type: "error", Payload: messagePayload{Message: err.Error()}})
		return
	}
	defer h.service.Close(ctx, runner.ID())
	logger = logger.With().Str("session", runner.ID()).Logger()

	runnerDone := make(chan struct{})
	go func() {
		defer close(runnerDone)
		_ = runner.Run(ctx)
	}()

	updates, unsubscribe := runner.Subscribe()
	defer unsubscribe()

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug().Err(err).Msg("ws write error")
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "session", Payload: sessionPayload{ID: runner.ID(), CatalogID: catalogID}}

	go func() {
		defer close(updatesDone)
		denied := false
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				if snap.Denied && !denied {
					select {
					case send <- outboundMessage[any]{Type: "notice", Payload: messagePayload{Message: permissionNotice}}:
					case <-closeSignals:
						return
					}
				}
				denied = snap.Denied
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: snap}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if err := dispatch(ctx, runner, gate, inbound); err != nil {
			if domain.IsRejection(err) {
				logger.Debug().Err(err).Str("type", inbound.Type).Msg("command ignored")
				continue
			}
			select {
			case send <- outboundMessage[any]{Type: "error", Payload: messagePayload{Message: err.Error()}}:
			default:
			}
		}
	}

	close(closeSignals)
	cancel()
	<-runnerDone
	<-updatesDone
	close(send)
	<-writerDone
}

var errUnsupportedMessage = errors.New("unsupported message type")

func dispatch(ctx context.Context, runner *app.Runner, gate *reportedGate, inbound inboundMessage) error {
	switch inbound.Type {
	case "start":
		var payload startPayload
		if err := decode(inbound.Payload, &payload); err != nil {
			return err
		}
		gate.report(payload.VideoCapability)
		return runner.Start(ctx)
	case "timeupdate":
		var payload timeUpdatePayload
		if err := decode(inbound.Payload, &payload); err != nil {
			return err
		}
		return runner.TimeUpdate(ctx, payload.CurrentTime, payload.Duration)
	case "ended":
		return runner.Ended(ctx)
	case "select":
		var payload selectPayload
		if err := decode(inbound.Payload, &payload); err != nil {
			return err
		}
		return runner.Select(ctx, payload.QuestionID, payload.Value)
	case "submit":
		var payload submitPayload
		if err := decode(inbound.Payload, &payload); err != nil {
			return err
		}
		return runner.Submit(ctx, payload.QuestionID)
	case "hint":
		return runner.ToggleHint(ctx)
	case "reset":
		return runner.Reset(ctx)
	default:
		return errUnsupportedMessage
	}
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.New("invalid payload")
	}
	return nil
}

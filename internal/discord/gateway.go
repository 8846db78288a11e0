package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/fragbridge/pkg/models"
)

const defaultGatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"

// Gateway intents: GUILDS for thread lifecycle events, GUILD_MESSAGES plus
// MESSAGE_CONTENT for reply tracking.
const gatewayIntents = (1 << 0) | (1 << 9) | (1 << 15)

const (
	opDispatch        = 0
	opHeartbeat       = 1
	opIdentify        = 2
	opHello           = 10
	opHeartbeatACK    = 11
	opReconnect       = 7
	opInvalidSession  = 9
	reconnectCooldown = 5 * time.Second
)

// Handler receives decoded gateway events. Implementations own their own
// goroutine discipline; the gateway calls them synchronously from its read
// loop.
type Handler interface {
	HandleThreadCreate(ctx context.Context, thread models.Thread)
	HandleThreadUpdate(ctx context.Context, thread models.Thread)
	HandleMessageCreate(ctx context.Context, msg models.Message)
}

// Gateway maintains the event-subscription websocket: hello/identify
// handshake, heartbeats, and dispatch of the thread and message events the
// bridge reacts to.
type Gateway struct {
	token   string
	url     string
	client  *Client
	handler Handler
	ready   atomic.Bool
}

// NewGateway creates a gateway listener. The REST client is used to resolve
// forum tag names on thread events.
func NewGateway(token string, client *Client, handler Handler) *Gateway {
	return &Gateway{
		token:   token,
		url:     defaultGatewayURL,
		client:  client,
		handler: handler,
	}
}

// Ready reports whether a gateway session is currently established. Wired
// to the readiness probe.
func (g *Gateway) Ready() bool {
	return g.ready.Load()
}

// Run connects and serves the gateway until ctx is cancelled, reconnecting
// after connection failures.
func (g *Gateway) Run(ctx context.Context) error {
	for {
		err := g.serve(ctx)
		g.ready.Store(false)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Dur("cooldown", reconnectCooldown).Msg("Gateway session ended; reconnecting")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectCooldown):
		}
	}
}

type gatewayPayload struct {
	Op   int             `json:"op"`
	Type string          `json:"t"`
	Seq  *int64          `json:"s"`
	Data json.RawMessage `json:"d"`
}

func (g *Gateway) serve(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, g.url, nil)
	if err != nil {
		return fmt.Errorf("gateway dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "shutting down")
	conn.SetReadLimit(1 << 22)

	// Hello carries the heartbeat interval.
	var hello gatewayPayload
	if err := wsjson.Read(ctx, conn, &hello); err != nil {
		return fmt.Errorf("gateway hello read: %w", err)
	}
	if hello.Op != opHello {
		return fmt.Errorf("gateway sent op %d before hello", hello.Op)
	}
	var helloData struct {
		HeartbeatInterval int `json:"heartbeat_interval"`
	}
	if err := json.Unmarshal(hello.Data, &helloData); err != nil {
		return fmt.Errorf("gateway hello decode: %w", err)
	}

	identify := map[string]interface{}{
		"op": opIdentify,
		"d": map[string]interface{}{
			"token":   g.token,
			"intents": gatewayIntents,
			"properties": map[string]string{
				"os":      "linux",
				"browser": "fragbridge",
				"device":  "fragbridge",
			},
		},
	}
	if err := wsjson.Write(ctx, conn, identify); err != nil {
		return fmt.Errorf("gateway identify: %w", err)
	}

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		seqMu   sync.Mutex
		lastSeq *int64
	)
	heartbeatErr := make(chan error, 1)
	go func() {
		interval := time.Duration(helloData.HeartbeatInterval) * time.Millisecond
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-serveCtx.Done():
				return
			case <-ticker.C:
				seqMu.Lock()
				seq := lastSeq
				seqMu.Unlock()
				if err := wsjson.Write(serveCtx, conn, map[string]interface{}{"op": opHeartbeat, "d": seq}); err != nil {
					heartbeatErr <- fmt.Errorf("gateway heartbeat: %w", err)
					return
				}
			}
		}
	}()

	for {
		select {
		case err := <-heartbeatErr:
			return err
		default:
		}

		var payload gatewayPayload
		if err := wsjson.Read(serveCtx, conn, &payload); err != nil {
			return fmt.Errorf("gateway read: %w", err)
		}
		if payload.Seq != nil {
			seqMu.Lock()
			lastSeq = payload.Seq
			seqMu.Unlock()
		}

		switch payload.Op {
		case opDispatch:
			g.dispatch(serveCtx, payload)
		case opHeartbeatACK:
			// expected, nothing to do
		case opReconnect, opInvalidSession:
			return errors.New("gateway requested reconnect")
		}
	}
}

func (g *Gateway) dispatch(ctx context.Context, payload gatewayPayload) {
	switch payload.Type {
	case "READY":
		g.ready.Store(true)
		log.Info().Msg("Gateway session established")
	case "THREAD_CREATE", "THREAD_UPDATE":
		var raw apiThread
		if err := json.Unmarshal(payload.Data, &raw); err != nil {
			log.Warn().Err(err).Str("event", payload.Type).Msg("Undecodable thread event")
			return
		}
		parentForum, tags := g.client.parentContext(ctx, raw.ParentID, raw.AppliedTagIDs)
		thread := raw.toModel(parentForum, tags)
		if payload.Type == "THREAD_CREATE" {
			g.handler.HandleThreadCreate(ctx, thread)
		} else {
			g.handler.HandleThreadUpdate(ctx, thread)
		}
	case "MESSAGE_CREATE":
		var raw apiMessage
		if err := json.Unmarshal(payload.Data, &raw); err != nil {
			log.Warn().Err(err).Msg("Undecodable message event")
			return
		}
		g.handler.HandleMessageCreate(ctx, raw.toModel())
	}
}

package bridge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/marmos91/fsbridge/internal/logger"
	"github.com/marmos91/fsbridge/internal/ratelimiter"
	"github.com/marmos91/fsbridge/internal/telemetry"
	"github.com/marmos91/fsbridge/pkg/bridge/protocol"
	"github.com/marmos91/fsbridge/pkg/metrics"
)

// ============================================================================
// Action Dispatch Table
// ============================================================================

// actionHandler decodes the raw request of one action, runs it and builds
// the reply.
type actionHandler func(ctx context.Context, svc *Service, raw []byte) protocol.Reply

type actionInfo struct {
	// Name is the action name as sent on the wire
	Name string

	Handler actionHandler

	// Picker marks actions that open a dialog. They are exempt from rate
	// limiting since they block on the user anyway.
	Picker bool
}

var actionTable map[string]*actionInfo

func init() {
	actionTable = map[string]*actionInfo{
		protocol.ActionShowOpenFilePicker: {
			Name:    protocol.ActionShowOpenFilePicker,
			Handler: handleShowOpenFilePicker,
			Picker:  true,
		},
		protocol.ActionShowDirectoryPicker: {
			Name:    protocol.ActionShowDirectoryPicker,
			Handler: handleShowDirectoryPicker,
			Picker:  true,
		},
		protocol.ActionShowSaveFilePicker: {
			Name:    protocol.ActionShowSaveFilePicker,
			Handler: handleShowSaveFilePicker,
			Picker:  true,
		},
		protocol.ActionReadFile: {
			Name:    protocol.ActionReadFile,
			Handler: handleReadFile,
		},
		protocol.ActionSaveFile: {
			Name:    protocol.ActionSaveFile,
			Handler: handleSaveFile,
		},
		protocol.ActionCreateFile: {
			Name:    protocol.ActionCreateFile,
			Handler: handleCreateFile,
		},
		protocol.ActionCreateDirectory: {
			Name:    protocol.ActionCreateDirectory,
			Handler: handleCreateDirectory,
		},
		protocol.ActionRemoveEntry: {
			Name:    protocol.ActionRemoveEntry,
			Handler: handleRemoveEntry,
		},
		protocol.ActionResolve: {
			Name:    protocol.ActionResolve,
			Handler: handleResolve,
		},
		protocol.ActionGetDirectory: {
			Name:    protocol.ActionGetDirectory,
			Handler: handleGetDirectory,
		},
		protocol.ActionDebugPrint: {
			Name:    protocol.ActionDebugPrint,
			Handler: handleDebugPrint,
		},
	}
}

// Actions lists the supported action names.
func Actions() []string {
	names := make([]string, 0, len(actionTable))
	for name := range actionTable {
		names = append(names, name)
	}
	return names
}

// ============================================================================
// Dispatcher
// ============================================================================

// Dispatcher is the single entry point of the native bridge.
//
// It implements transport.Handler, so every adapter feeds raw requests
// straight into Dispatch. Each request is:
//  1. Routed by its "action" field through the action table
//  2. Rate limited, unless it opens a picker
//  3. Traced and measured
//  4. Decoded and run against the Service, with panics recovered
//
// Thread safety:
// Dispatch is safe for concurrent use.
type Dispatcher struct {
	svc     *Service
	limiter *ratelimiter.RateLimiter
	metrics metrics.BridgeMetrics
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithRateLimiter makes non-picker actions wait for a token before
// running.
func WithRateLimiter(l *ratelimiter.RateLimiter) DispatcherOption {
	return func(d *Dispatcher) {
		d.limiter = l
	}
}

// WithMetrics records requests into m instead of the Service's metrics.
// A nil m is ignored.
func WithMetrics(m metrics.BridgeMetrics) DispatcherOption {
	return func(d *Dispatcher) {
		if m != nil {
			d.metrics = m
		}
	}
}

// NewDispatcher creates a Dispatcher over svc.
//
// Parameters:
//   - svc: The service running the actions
//   - opts: Optional rate limiter and metrics override
//
// Without options the dispatcher shares the service's metrics and does not
// rate limit.
func NewDispatcher(svc *Service, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		svc:     svc,
		metrics: svc.metrics,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch handles one raw request and always returns a reply. Requests
// are independent: Dispatch may be called concurrently.
//
// Returns:
//   - A success reply carrying the action's result
//   - A failure reply with a fixed per-action message when the request is
//     malformed or the operation fails
//   - An empty reply for debugPrint
func (d *Dispatcher) Dispatch(ctx context.Context, raw []byte) (reply protocol.Reply) {
	name, err := protocol.ActionOf(raw)
	if err != nil {
		logger.Warn("Rejecting request: %v", err)
		return protocol.Failure(err.Error())
	}

	info, ok := actionTable[name]
	if !ok {
		logger.Warn("Unknown action: %s", name)
		d.metrics.RecordRequest(name, 0, metrics.StatusRejected)
		return protocol.Failure(fmt.Sprintf("unknown action: %s", name))
	}

	ctx, span := telemetry.StartSpan(ctx, "bridge."+name, telemetry.AttrAction.String(name))
	defer span.End()

	if d.limiter != nil && !info.Picker {
		if err := d.limiter.Wait(ctx); err != nil {
			d.metrics.RecordRequest(name, 0, metrics.StatusRejected)
			telemetry.RecordError(ctx, err)
			return protocol.Failure(fmt.Sprintf("%s: rate limit: %v", name, err))
		}
	}

	start := time.Now()
	d.metrics.RecordRequestStart(name)
	defer func() {
		d.metrics.RecordRequestEnd(name)

		status := metrics.StatusSuccess
		if reply.Failed() {
			status = metrics.StatusError
			telemetry.RecordError(ctx, errors.New(reply.Message()))
		}
		d.metrics.RecordRequest(name, time.Since(start), status)
	}()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in %s handler: %v\n%s", name, r, debug.Stack())
			reply = protocol.Failure(fmt.Sprintf("%s: internal error", name))
		}
	}()

	return info.Handler(ctx, d.svc, raw)
}

// ============================================================================
// Action Handlers
// ============================================================================

// handleAction decodes a request of type Req and runs fn on it. A request
// that does not decode yields failMsg.
func handleAction[Req any](
	ctx context.Context,
	raw []byte,
	action string,
	failMsg string,
	fn func(ctx context.Context, req *Req) (any, error),
) protocol.Reply {
	req := new(Req)
	if err := json.Unmarshal(raw, req); err != nil {
		logger.Warn("%s: malformed request: %v", action, err)
		return protocol.Failure(failMsg)
	}

	result, err := fn(ctx, req)
	if err != nil {
		logger.Warn("%s failed: %v", action, err)
		if errors.Is(err, ErrUserCancelled) {
			return protocol.Failure(MsgPickerDismissed)
		}
		return protocol.Failure(failMsg)
	}

	reply, err := protocol.Success(result)
	if err != nil {
		logger.Error("%s: failed to encode result: %v", action, err)
		return protocol.Failure(failMsg)
	}
	return reply
}

func handleShowOpenFilePicker(ctx context.Context, svc *Service, raw []byte) protocol.Reply {
	return handleAction(ctx, raw, protocol.ActionShowOpenFilePicker, MsgDirectoryContents,
		func(ctx context.Context, req *protocol.OpenFilePickerRequest) (any, error) {
			logger.Debug("[CALL] showOpenFilePicker multiple=%t accept=%v", req.Multiple, req.Extensions())
			return svc.PickFiles(ctx, req.Multiple, req.Extensions())
		})
}

func handleShowDirectoryPicker(ctx context.Context, svc *Service, raw []byte) protocol.Reply {
	return handleAction(ctx, raw, protocol.ActionShowDirectoryPicker, MsgDirectoryContents,
		func(ctx context.Context, _ *protocol.DirectoryPickerRequest) (any, error) {
			logger.Debug("[CALL] showDirectoryPicker")
			return svc.PickDirectory(ctx)
		})
}

func handleShowSaveFilePicker(ctx context.Context, svc *Service, raw []byte) protocol.Reply {
	return handleAction(ctx, raw, protocol.ActionShowSaveFilePicker, MsgCreateEntry,
		func(ctx context.Context, req *protocol.SaveFilePickerRequest) (any, error) {
			logger.Debug("[CALL] showSaveFilePicker suggestedName=%q", req.SuggestedName)
			return svc.PickSaveTarget(ctx, req.SuggestedName)
		})
}

func handleReadFile(ctx context.Context, svc *Service, raw []byte) protocol.Reply {
	return handleAction(ctx, raw, protocol.ActionReadFile, MsgReadFile,
		func(ctx context.Context, req *protocol.EntryRequest) (any, error) {
			logger.Debug("[CALL] readFile identifier=%s", req.Identifier)
			telemetry.SetAttributes(ctx, telemetry.AttrIdentifier.String(req.Identifier))
			return svc.ReadFile(ctx, req.Identifier)
		})
}

func handleSaveFile(ctx context.Context, svc *Service, raw []byte) protocol.Reply {
	return handleAction(ctx, raw, protocol.ActionSaveFile, MsgSaveFile,
		func(ctx context.Context, req *protocol.SaveFileRequest) (any, error) {
			logger.Debug("[CALL] saveFile identifier=%s", req.Identifier)
			telemetry.SetAttributes(ctx, telemetry.AttrIdentifier.String(req.Identifier))

			data, err := base64.StdEncoding.DecodeString(req.Content)
			if err != nil {
				return nil, fmt.Errorf("invalid content encoding: %w", err)
			}
			telemetry.SetAttributes(ctx, telemetry.AttrBytes.Int(len(data)))

			if err := svc.SaveFile(ctx, req.Identifier, data); err != nil {
				return nil, err
			}
			return protocol.SaveSuccess, nil
		})
}

func handleCreateFile(ctx context.Context, svc *Service, raw []byte) protocol.Reply {
	return handleAction(ctx, raw, protocol.ActionCreateFile, MsgCreateEntry,
		func(ctx context.Context, req *protocol.CreateEntryRequest) (any, error) {
			logger.Debug("[CALL] createFile parent=%s name=%q", req.Parent, req.Name)
			return svc.CreateFile(ctx, req.Parent, req.Name)
		})
}

func handleCreateDirectory(ctx context.Context, svc *Service, raw []byte) protocol.Reply {
	return handleAction(ctx, raw, protocol.ActionCreateDirectory, MsgCreateEntry,
		func(ctx context.Context, req *protocol.CreateEntryRequest) (any, error) {
			logger.Debug("[CALL] createDirectory parent=%s name=%q", req.Parent, req.Name)
			return svc.CreateDirectory(ctx, req.Parent, req.Name)
		})
}

func handleRemoveEntry(ctx context.Context, svc *Service, raw []byte) protocol.Reply {
	return handleAction(ctx, raw, protocol.ActionRemoveEntry, MsgRemoveEntry,
		func(ctx context.Context, req *protocol.RemoveEntryRequest) (any, error) {
			logger.Debug("[CALL] removeEntry identifier=%s recursive=%t", req.Identifier, req.Recursive)
			telemetry.SetAttributes(ctx, telemetry.AttrIdentifier.String(req.Identifier))
			return svc.RemoveEntry(ctx, req.Identifier, req.Recursive)
		})
}

func handleResolve(ctx context.Context, svc *Service, raw []byte) protocol.Reply {
	return handleAction(ctx, raw, protocol.ActionResolve, MsgDirectoryContents,
		func(ctx context.Context, req *protocol.EntryRequest) (any, error) {
			logger.Debug("[CALL] resolve identifier=%s", req.Identifier)
			return svc.Resolve(ctx, req.Identifier), nil
		})
}

func handleGetDirectory(ctx context.Context, svc *Service, raw []byte) protocol.Reply {
	return handleAction(ctx, raw, protocol.ActionGetDirectory, MsgDirectoryContents,
		func(ctx context.Context, req *protocol.EntryRequest) (any, error) {
			logger.Debug("[CALL] getDirectory identifier=%s", req.Identifier)
			telemetry.SetAttributes(ctx, telemetry.AttrIdentifier.String(req.Identifier))
			return svc.GetDirectory(ctx, req.Identifier)
		})
}

// handleDebugPrint logs the client's message. It never fails and replies
// with neither a result nor an error.
func handleDebugPrint(_ context.Context, _ *Service, raw []byte) protocol.Reply {
	var req protocol.DebugPrintRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		logger.Debug("debugPrint: malformed request: %v", err)
		return protocol.Reply{}
	}
	logger.Info("client: %s", req.Message)
	return protocol.Reply{}
}

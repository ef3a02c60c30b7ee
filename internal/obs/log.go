package obs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

var (
	loggerMu sync.Mutex
	logger   = log.New(os.Stdout, "", 0)
)

func Logger() *log.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	return logger
}

// SetOutput redirects structured lines, mostly for tests.
func SetOutput(w io.Writer) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = log.New(w, "", 0)
}

func LogRequest(entry map[string]any) {
	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"level":"error","msg":"log marshal failed"}`)
		return
	}
	Logger().Println(string(data))
}

type ctxKey string

const (
	requestIDKey ctxKey = "obs_request_id"
	userIDKey    ctxKey = "obs_user_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func WithUserID(ctx context.Context, userID string) context.Context {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ctx
	}
	return context.WithValue(ctx, userIDKey, userID)
}

func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// LogEvent writes one audit line enriched with the request and user carried
// by ctx.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	entry := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"type":  "audit",
		"event": event,
	}
	if rid := RequestID(ctx); rid != "" {
		entry["request_id"] = rid
	}
	if ctx != nil {
		if uid, _ := ctx.Value(userIDKey).(string); uid != "" {
			entry["user_id"] = uid
		}
	}
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	entry["fields"] = copied

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	Logger().Println(string(data))
	return nil
}

// Package repo implements the entity repositories on top of the retry
// gateway and the in-memory query engine. Every method returns a
// response.Envelope; no error escapes.
package repo

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"go.uber.org/zap"

	"go-kv-commerce/internal/apperr"
	"go-kv-commerce/internal/core/kv"
	"go-kv-commerce/internal/perf"
	"go-kv-commerce/pkg/utils"
)

// loadAll reads the full collection snapshot and decodes every document.
// Snapshot order is storage-key ascending so ties in later stable sorts are
// deterministic. Malformed documents are skipped, not fatal.
func loadAll[T any](ctx context.Context, gw *kv.Gateway, log *zap.Logger, collection string) ([]T, error) {
	docs, err := kv.RetryValue(ctx, gw, collection+".getAll", func(ctx context.Context) (map[string]string, error) {
		s, err := gw.Connection(ctx)
		if err != nil {
			return nil, err
		}
		m, err := s.GetAll(ctx, collection)
		if err != nil {
			return nil, apperr.Database("read "+collection, err)
		}
		return m, nil
	})
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(docs))
	for k := range docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]T, 0, len(docs))
	for _, k := range keys {
		var v T
		if err := json.Unmarshal([]byte(docs[k]), &v); err != nil {
			log.Warn("skipping malformed document",
				zap.String("collection", collection), zap.String("key", k), zap.Error(err))
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func loadOne[T any](ctx context.Context, gw *kv.Gateway, collection, key string) (*T, error) {
	type hit struct {
		doc string
		ok  bool
	}
	h, err := kv.RetryValue(ctx, gw, collection+".get", func(ctx context.Context) (hit, error) {
		s, err := gw.Connection(ctx)
		if err != nil {
			return hit{}, err
		}
		doc, ok, err := s.Get(ctx, collection, key)
		if err != nil {
			return hit{}, apperr.Database("read "+collection+"/"+key, err)
		}
		return hit{doc: doc, ok: ok}, nil
	})
	if err != nil {
		return nil, err
	}
	if !h.ok {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal([]byte(h.doc), &v); err != nil {
		return nil, apperr.Database("decode "+collection+"/"+key, err)
	}
	return &v, nil
}

func save[T any](ctx context.Context, gw *kv.Gateway, collection, key string, v T) error {
	b, err := json.Marshal(v)
	if err != nil {
		return apperr.Database("encode "+collection+"/"+key, err)
	}
	return gw.Retry(ctx, collection+".put", func(ctx context.Context) error {
		s, err := gw.Connection(ctx)
		if err != nil {
			return err
		}
		if err := s.Put(ctx, collection, key, string(b)); err != nil {
			return apperr.Database("write "+collection+"/"+key, err)
		}
		return nil
	})
}

func remove(ctx context.Context, gw *kv.Gateway, collection, key string) (bool, error) {
	return kv.RetryValue(ctx, gw, collection+".delete", func(ctx context.Context) (bool, error) {
		s, err := gw.Connection(ctx)
		if err != nil {
			return false, err
		}
		existed, err := s.Delete(ctx, collection, key)
		if err != nil {
			return false, apperr.Database("delete "+collection+"/"+key, err)
		}
		return existed, nil
	})
}

// track brackets one repository operation for the performance monitor.
func track(mon *perf.Monitor, op string) func(success bool) {
	if mon == nil {
		return func(bool) {}
	}
	id := utils.NewID()
	mon.Start(id, perf.TypeDatabase, map[string]any{"operation": op})
	return func(success bool) { mon.Stop(id, success, nil) }
}

// maskEmail redacts the local part for log context.
func maskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return "****"
	}
	return email[:1] + "***" + email[at:]
}

// decodeInto coerces a loosely typed patch value into dst via JSON.
func decodeInto[T any](v any, dst *T) bool {
	b, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return json.Unmarshal(b, dst) == nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func asInt(v any) (int, bool) {
	f, ok := asFloat(v)
	if !ok || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

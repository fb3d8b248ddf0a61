package backend

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MaxRetentionDays caps any retention horizon, ten years.
const MaxRetentionDays = 3650

// Args are named procedure arguments.
type Args map[string]any

// Int reads an integer argument. JSON numbers arrive as float64.
func (a Args) Int(key string) (int, error) {
	switch v := a[key].(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("%s must be a whole number", key)
		}
		return int(v), nil
	case nil:
		return 0, fmt.Errorf("%s is required", key)
	default:
		return 0, fmt.Errorf("%s must be a number", key)
	}
}

// String reads a string argument, trimmed. Missing keys read as "".
func (a Args) String(key string) string {
	v, _ := a[key].(string)
	return strings.TrimSpace(v)
}

// Strings reads a list of strings.
func (a Args) Strings(key string) ([]string, error) {
	switch v := a[key].(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s must be a list of strings", key)
			}
			out = append(out, s)
		}
		return out, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("%s must be a list of strings", key)
	}
}

// Bool reads a boolean argument, false when missing.
func (a Args) Bool(key string) bool {
	v, _ := a[key].(bool)
	return v
}

// ProcedureFunc implements one named procedure.
type ProcedureFunc func(ctx context.Context, args Args) (any, error)

// Registry dispatches procedure calls by name.
type Registry struct {
	mu    sync.RWMutex
	procs map[string]ProcedureFunc
}

func NewRegistry() *Registry {
	return &Registry{procs: map[string]ProcedureFunc{}}
}

// Register adds or replaces a procedure.
func (r *Registry) Register(name string, fn ProcedureFunc) {
	r.mu.Lock()
	r.procs[name] = fn
	r.mu.Unlock()
}

// Call runs the named procedure. Failures are reported as ProcedureError
// unless the procedure already classified them.
func (r *Registry) Call(ctx context.Context, name string, args Args) (any, error) {
	r.mu.RLock()
	fn, ok := r.procs[name]
	r.mu.RUnlock()
	if !ok {
		return nil, NewError(KindProcedure, name, "Unknown procedure "+name, nil)
	}
	out, err := fn(ctx, args)
	if err != nil {
		if KindOf(err) != "" {
			return nil, err
		}
		return nil, NewError(KindProcedure, name, err.Error(), err)
	}
	return out, nil
}

// registerBuiltins installs the retention and intake procedures.
func registerBuiltins(r *Registry, store *Store, maxImages int) {
	r.Register(ProcSetDefaultRetention, func(ctx context.Context, args Args) (any, error) {
		days, err := retentionDays(args)
		if err != nil {
			return nil, err
		}
		if err := store.SetDefaultRetention(ctx, days); err != nil {
			return nil, NewError(KindProcedure, ProcSetDefaultRetention, "Failed to save default retention", err)
		}
		return days, nil
	})

	r.Register(ProcSetSubmissionRetention, func(ctx context.Context, args Args) (any, error) {
		id := args.String("_id")
		if id == "" {
			return nil, NewError(KindProcedure, ProcSetSubmissionRetention, "_id is required", nil)
		}
		days, err := retentionDays(args)
		if err != nil {
			return nil, err
		}
		return store.SetSubmissionRetention(ctx, id, days)
	})

	r.Register(ProcCreateSubmissionMulti, func(ctx context.Context, args Args) (any, error) {
		in := NewSubmission{
			Name:           args.String("_name"),
			Mobile:         args.String("_mobile"),
			Email:          args.String("_email"),
			Address:        args.String("_address"),
			ProductDetails: args.String("_product_details"),
		}
		if in.Name == "" || in.Mobile == "" || in.Address == "" || in.ProductDetails == "" {
			return nil, NewError(KindProcedure, ProcCreateSubmissionMulti, "Name, mobile, address and product details are required", nil)
		}
		paths, err := args.Strings("_image_paths")
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			if strings.TrimSpace(p) == "" {
				return nil, NewError(KindProcedure, ProcCreateSubmissionMulti, "Image paths must not be empty", nil)
			}
		}
		if len(paths) == 0 {
			return nil, NewError(KindProcedure, ProcCreateSubmissionMulti, "At least one image is required", nil)
		}
		if maxImages > 0 && len(paths) > maxImages {
			return nil, NewError(KindProcedure, ProcCreateSubmissionMulti, fmt.Sprintf("At most %d images are allowed", maxImages), nil)
		}
		in.ImagePaths = paths

		sub, err := store.CreateSubmission(ctx, in, args.Bool("_apply_default_retention"))
		if err != nil {
			return nil, err
		}
		return sub.ID, nil
	})
}

func retentionDays(args Args) (int, error) {
	days, err := args.Int("_days")
	if err != nil {
		return 0, err
	}
	if days < 1 || days > MaxRetentionDays {
		return 0, fmt.Errorf("retention days must be between 1 and %d", MaxRetentionDays)
	}
	return days, nil
}

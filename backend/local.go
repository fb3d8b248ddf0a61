package backend

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/ecorecycle/utils"
)

// Options configures a Local backend.
type Options struct {
	DB                   *gorm.DB
	Redis                *redis.Client // optional
	JWTSecret            string
	SessionTTL           time.Duration
	StorageDir           string
	PublicBaseURL        string
	MaxImageBytes        int64
	MaxImages            int
	DefaultRetentionDays int
	Logger               *zap.SugaredLogger
}

// Local is the in-process Client: gorm tables, JWT auth, disk storage,
// a procedure registry and a realtime hub.
type Local struct {
	*AuthService
	*Store
	*DiskStorage

	Hub   *Hub
	procs *Registry
	log   *zap.SugaredLogger
}

var _ Client = (*Local)(nil)

// NewLocal wires every backend component from opts.
func NewLocal(opts Options) *Local {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	hub := NewHub(log.Named("realtime"))
	store := NewStore(opts.DB, hub, utils.NewRedisCache(opts.Redis), opts.DefaultRetentionDays, log.Named("store"))
	disk := NewDiskStorage(opts.StorageDir, opts.PublicBaseURL, opts.MaxImageBytes, log.Named("storage"))
	store.onDelete = disk.Remove

	procs := NewRegistry()
	registerBuiltins(procs, store, opts.MaxImages)

	return &Local{
		AuthService: NewAuthService(opts.DB, opts.JWTSecret, opts.SessionTTL, utils.NewTokenBlacklist(opts.Redis), log.Named("auth")),
		Store:       store,
		DiskStorage: disk,
		Hub:         hub,
		procs:       procs,
		log:         log,
	}
}

// CallProcedure runs a registered procedure.
func (l *Local) CallProcedure(ctx context.Context, name string, args Args) (any, error) {
	return l.procs.Call(ctx, name, args)
}

// Subscribe delivers change events for table.
func (l *Local) Subscribe(table string, handler func(ChangeEvent)) func() {
	return l.Hub.Subscribe(table, handler)
}

// Close ends all realtime subscriptions.
func (l *Local) Close() {
	l.Hub.Close()
}

package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"filehaven/internal/auth"
	"filehaven/internal/config"
	"filehaven/internal/httpserver"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "passwd" {
		passwdCmd(os.Args[2:])
		return
	}

	var (
		addr    = flag.String("addr", "", "listen address (default 0.0.0.0:5000)")
		root    = flag.String("root", "", "storage root (default: uploads)")
		cfgPath = flag.String("config", "", "path to config file, json or yaml (optional)")
	)
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	var cfg config.Config
	if *cfgPath != "" {
		cfg, err = config.Load(*cfgPath)
		if err != nil {
			log.Fatal("load config", zap.Error(err))
		}
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if strings.TrimSpace(*root) != "" {
		cfg.Root = *root
	}
	cfg.ApplyDefaults()

	if cfg.Username == "" || cfg.PasswordBcrypt == "" {
		log.Fatal("config: username and passwordBcrypt are required (generate a hash with: filehaven passwd -p <password>)")
	}

	absRoot, err := filepath.Abs(cfg.Root)
	if err != nil {
		log.Fatal("abs root", zap.Error(err))
	}
	cfg.Root = absRoot
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		log.Fatal("mkdir root", zap.Error(err))
	}
	if cfg.StateDir == "" {
		cfg.StateDir = filepath.Join(cfg.Root, ".filehaven")
	}
	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		log.Fatal("mkdir state", zap.Error(err))
	}

	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		secret = randomSecret()
		log.Warn("no sessionSecret configured; sessions will reset on restart")
	}

	srv, err := httpserver.New(httpserver.Options{
		Config:   cfg,
		Provider: auth.StaticProvider{Username: cfg.Username, Bcrypt: cfg.PasswordBcrypt},
		Sessions: auth.NewSessions(secret),
		Log:      log,
	})
	if err != nil {
		log.Fatal("server init", zap.Error(err))
	}

	log.Info("filehaven listening",
		zap.String("addr", cfg.Addr),
		zap.String("root", cfg.Root))
	if err := http.ListenAndServe(cfg.Addr, withHeaders(srv.Handler())); err != nil {
		log.Fatal("listen", zap.Error(err))
	}
}

func passwdCmd(args []string) {
	fs := flag.NewFlagSet("passwd", flag.ExitOnError)
	var (
		password = fs.String("p", "", "password (required)")
		cost     = fs.Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	)
	_ = fs.Parse(args)
	if *password == "" {
		fmt.Fprintln(os.Stderr, "usage: filehaven passwd -p <password>")
		os.Exit(2)
	}
	if *cost < bcrypt.MinCost || *cost > bcrypt.MaxCost {
		fmt.Fprintf(os.Stderr, "invalid cost %d (min=%d max=%d)\n", *cost, bcrypt.MinCost, bcrypt.MaxCost)
		os.Exit(2)
	}
	h, err := bcrypt.GenerateFromPassword([]byte(*password), *cost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bcrypt: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(h))
}

func randomSecret() []byte {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return []byte(hex.EncodeToString(b[:]))
}

func withHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

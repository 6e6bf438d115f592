package main

import (
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	auth "github.com/goliatone/go-portal-auth"
	"github.com/goliatone/go-portal-auth/apitest"
	"github.com/goliatone/go-portal-auth/logging"
)

func main() {
	addr := flag.String("addr", ":3000", "listen address")
	key := flag.String("key", "portal-secret", "HS256 signing key")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger := logging.New(os.Stderr, *logLevel, "text")

	srv := apitest.NewServer(apitest.WithSigningKey([]byte(*key)))
	seed(srv, logger)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		logger.Info("shutting down")
		_ = srv.App.Shutdown()
	}()

	logger.Info("mock portal api listening", "addr", *addr)
	if err := srv.Listen(*addr); err != nil {
		logger.Error("listen failed", "error", err)
		os.Exit(1)
	}
}

func seed(srv *apitest.Server, logger *slog.Logger) {
	users := []struct {
		user     auth.User
		password string
	}{
		{auth.User{ProfileID: auth.DefaultAdminProfileID, FirstName: "Admin", Nick: "admin", Email: "admin@portal.test", Active: true}, "admin123"},
		{auth.User{ProfileID: 2, FirstName: "Lectora", Nick: "lectora", Email: "lectora@portal.test", Active: true}, "lectora123"},
	}
	for _, u := range users {
		id, err := srv.AddUser(u.user, u.password)
		if err != nil {
			logger.Error("seed user failed", "email", u.user.Email, "error", err)
			continue
		}
		logger.Info("seeded user", "id", id, "email", u.user.Email)
	}
}

// Package logging constructs the process logger from configuration.
//
// # Overview
//
// Every tollgate component logs through a *slog.Logger handed to it at
// construction time. This package builds that logger from a
// config.LoggingConfig: it parses the level, picks the JSON or text
// handler, and points it at the process writer.
//
// # Basic Usage
//
//	logger, err := logging.New(cfg.Logging)
//	if err != nil {
//		return err
//	}
//	lim, err := limiter.NewFungibleWithConfig(limiter.FungibleConfig{
//		Store:  st,
//		Logger: logger,
//	})
//
// Components tag their records with a "component" attribute, so a single
// process logger fans out cleanly across packages.
package logging

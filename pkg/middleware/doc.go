// Package middleware provides HTTP middleware for authentication and rate
// limiting.
//
// AuthMiddleware extracts the bearer token, resolves it through the
// identity provider and stores the session in the request context:
//
//	router.Use(middleware.NewAuthMiddleware(provider, false).Handler)
//
// RateLimit throttles per user (or per client IP for anonymous requests)
// using either an in-process token bucket or a Redis fixed window:
//
//	limiter := middleware.NewDistributedRateLimiter(redisClient, cfg, "")
//	router.Use(middleware.RateLimit(limiter, cfg, metrics))
//
// Place RateLimit after AuthMiddleware so authenticated requests are keyed
// by user.
package middleware

// Package corsmw is an http.Handler-wrapping CORS middleware for
// httpserver, grounded on the source's middleware/cors/CorsMiddleware:
// an allow-list of origins, a preflight (OPTIONS) short-circuit that
// answers 204 with the CORS headers set (or 403 if the origin is not
// allowed), and an after-hook that adds the same headers to every
// other response.
package corsmw

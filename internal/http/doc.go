// Package http exposes the reservation services as a JSON API.
//
// The router exposes the following endpoints:
//   - GET /healthz: liveness probe, always 200 {"status":"ok"}.
//   - GET /owners?q=, GET /owners/centres: owner directory. Without q every
//     owner is returned ordered by name; with q a case-insensitive substring
//     match on the name.
//   - GET /rooms?owner=: room inventory, optionally restricted to one owner name.
//   - GET /availability?owner=&date_from=&date_to=&time_from=&time_to=&min_capacity=&min_computers=:
//     rooms of owner free for the whole window on every day of the range.
//   - GET /reservations?owner=&date_from=&date_to=&time_from=&time_to=: reservation
//     search. Time bounds apply to the start time and are inclusive.
//   - GET /reservations/upcoming: reservations starting after now.
//   - POST /reservations, PUT /reservations/{id}: body is `reservationRequest`
//     defined in reservation_handler.go; responses carry `reservationDTO`.
//   - DELETE /reservations/{id}?actor_id=: returns 204 No Content.
//   - GET /history?date_from=&date_to=: audit records by operation date.
//   - GET /history/verify: recomputes the ledger digest chain.
//
// Dates use YYYY-MM-DD and times HH:MM. Malformed input answers 400 with an
// `errors` map (reservation fields) or a `reasons` list (query filters), unknown
// ids 404, overlapping windows 409 with the colliding reservation ids.
package http

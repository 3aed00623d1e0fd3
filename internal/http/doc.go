// Package http provides HTTP handlers and middleware for the compliance API.
//
// The router exposes two groups, both behind the API key middleware:
//   - /api/timetracker: badge terminal ingestion and ledger views.
//     POST /data ingests a swipe (`swipeRequest`) and answers with
//     `ingestResponse`. GET /data, /data/latest, /data/action/{action} and
//     /data/system/{systemID} return `swipeEventDTO` rows newest first.
//     GET /stats summarises the ledger, DELETE /data clears it and GET /stream
//     is a server-sent event feed of ledger changes.
//   - /api/employee: directory and card management. Employees, supervisors
//     and work schedules support list/create on the collection and
//     read/update/delete by id. POST /assign-card binds a card and answers 409
//     naming the holder when the card is taken. DELETE /unassign-card/{cardID}
//     releases a card, and /card, /card-status and /card-history expose the
//     current and historical bindings of a card.
//
// The API key is read from `X-Api-Key` or `Authorization: ApiKey <key>`.
// Request/response DTOs live alongside their respective handlers.
package http

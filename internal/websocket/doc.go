// Jukewire - Crowd-Curated Queue and Zone Playback Synchronization
// Copyright 2026 Jukewire contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jukewire/jukewire

/*
Package websocket pushes live queue and playback updates to session
clients.

It uses the gorilla/websocket library with a hub-client architecture.
The Hub is the single fan-out point: the playback monitor and the
mutation protocol both publish through it, and every connected client
receives only the messages of its own session.

Key Components:

  - Hub: central broker keyed by session; implements the Broadcaster
    contracts of the monitor and session packages
  - Client: one WebSocket connection with read/write goroutines
  - Message: typed envelope (queue_update, playback_update,
    session_ended, ping/pong)

Each client has two goroutines:
  - readPump: reads from the socket, answers application-level pings
  - writePump: writes hub messages, drives protocol-level keepalive

Delivery is best-effort. Publishing never blocks: a full broadcast
buffer drops the message, and a client whose send buffer is full is
disconnected. Clients always converge because every mutation and every
reconciliation pass re-publishes complete snapshots rather than deltas.
*/
package websocket

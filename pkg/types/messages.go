package types

// Client -> Server (websocket /ws?code=ROOM&token=T&name=N&color=C)
// Every message is {"type": ..., ...}. Host-only commands from anyone else
// are ignored without an error.
//
// ToggleMark:
//   cell: number           // mark or unmark for the sender's token
//
// Regenerate (host):
//   settings?: SettingsPatch  // applied together with the new board
//
// PatchSettings (host):
//   settings: SettingsPatch
//
// Start (host), Pause (host), AdvanceStage (host), ResetRun (host): {}
//
// SetName:
//   name: string
//   color?: string
//
// SettingsPatch (every field optional):
//   size: 3 | 4 | 5
//   seed: string
//   freeCenter: boolean
//   mode: "standard" | "blackout"
//   goalsSourceType: "local" | "sheets"
//   goalsSourceUrl: string
//   gameMode: "pvp" | "pve"
//   botDifficulty: "test" | "easy" | "medium" | "hard"
//   botName: string

// Server -> Client
// StateSnapshot:
//   version: number
//   you: string            // the token this connection acts as
//   state: Snapshot
//
// Error:
//   code: string           // "bad_json" | "unknown_type" | "rejected"
//   error: string

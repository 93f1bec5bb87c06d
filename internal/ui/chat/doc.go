// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the interactive study chat view built on Bubble Tea.

The model never talks to the server itself. Every user action is a
controller call dispatched as a tea.Cmd, and the screen is redrawn from
snapshots of the session directory, the transcript buffer and the
controller status.

# Key Components

## Model (model.go)

Key handling, focus (input or session list) and modal prompts for session
search, rename and delete confirmation.

## View Rendering (view.go)

Session list sidebar, header with the active title and proficiency level,
the transcript viewport, the input box and a status bar with short help.

## Frame Pacing (streaming.go)

While an action or stream is in flight the model pulls snapshots at most
30 times per second. Chunks written by the stream engine show up at the
next frame. Watch forwards buffer and directory changes as wake
messages, so a change that lands while frames are idle is drawn too.

## Render Cache (rendercache.go)

Finished assistant replies are rendered as Markdown once and cached by
content hash.

# Usage

	gate := &chat.ConfirmGate{}
	ctrl, _ := controller.New(controller.Deps{..., Confirm: gate.Confirm}, cfg)
	p := tea.NewProgram(chat.New(ctrl, chat.Options{Gate: gate}), tea.WithAltScreen())
	chat.Watch(ctx, ctrl, p.Send)
	_, err := p.Run()
*/
package chat

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export_test

import (
	"fmt"

	"github.com/jeranaias/studychat-tui/internal/export"
	"github.com/jeranaias/studychat-tui/internal/model"
)

// ExampleNewExporter renders a short transcript as plain text.
func ExampleNewExporter() {
	t := &export.Transcript{
		Session: model.Session{ID: "3", Title: "Photosynthesis"},
		Messages: []model.Message{
			model.NewUserMessage("What does chlorophyll do?"),
			model.NewAssistantMessage("It absorbs light."),
		},
	}

	e, err := export.NewExporter("text", nil)
	if err != nil {
		fmt.Println(err)
		return
	}
	out, _ := e.Export(t)
	fmt.Print(string(out))
	// Output:
	// User: What does chlorophyll do?
	//
	// Assistant: It absorbs light.
}

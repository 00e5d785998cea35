/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"path"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/engine"
)

// SummaryRunes caps SummaryLine.
const SummaryRunes = 96

// ChapterLabel turns a background asset path into a display label:
// "bg/old_town-night.png" becomes "Old Town Night". It is empty when there
// is no background.
func ChapterLabel(background *string) string {
	if background == nil {
		return ""
	}
	base := path.Base(strings.ReplaceAll(*background, `\`, "/"))
	stem := strings.TrimSuffix(base, path.Ext(base))
	words := strings.Fields(strings.NewReplacer("_", " ", "-", " ").Replace(stem))
	if len(words) == 0 {
		return ""
	}
	return cases.Title(language.Und).String(strings.Join(words, " "))
}

// SummaryLine renders the last history entry as "speaker: text", or just the
// text when the speaker is blank, cut to SummaryRunes.
func SummaryLine(history []engine.HistoryEntry) string {
	if len(history) == 0 {
		return ""
	}
	last := history[len(history)-1]
	speaker := strings.TrimSpace(last.Speaker)
	text := strings.TrimSpace(last.Text)
	if text == "" {
		return ""
	}
	line := text
	if speaker != "" {
		line = speaker + ": " + text
	}
	if utf8.RuneCountInString(line) <= SummaryRunes {
		return line
	}
	r := []rune(line)
	return string(r[:SummaryRunes-3]) + "..."
}

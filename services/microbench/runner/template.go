// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package runner

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/AleutianAI/microbench/services/microbench/suite"
)

const indexPlaceholder = "i"

// ResolveName expands the placeholders of a unit name template.
//
// Description:
//
//	Every "$i" becomes index first. Then, for each formal parameter in
//	declaration order, every "$<name>" becomes the string form of the
//	argument at the same position. Matching is plain substring
//	replacement: "$n" in "size_$n_items" resolves, and "$x" also rewrites
//	the "$x" prefix of "$xy" when "x" is declared before "xy".
//	Placeholders naming an unknown parameter, or a parameter without a
//	matching argument, stay verbatim.
//
// Inputs:
//
//	template - The display-name template.
//	index    - Zero-based position of args in the unit's parameter stream.
//	params   - Formal parameter names, positionally.
//	args     - The injected arguments.
//
// Outputs:
//
//	string - The resolved name.
//
// Example:
//
//	ResolveName("run-$i-$x", 0, []string{"x"}, suite.Args(7)) // "run-0-7"
func ResolveName(template string, index int, params []string, args suite.Arguments) string {
	name := strings.ReplaceAll(template, "$"+indexPlaceholder, strconv.Itoa(index))
	for pos, param := range params {
		if param == "" {
			continue
		}
		value, ok := args.Get(pos)
		if !ok {
			continue
		}
		name = strings.ReplaceAll(name, "$"+param, fmt.Sprint(value))
	}
	return name
}

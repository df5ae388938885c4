// flex_list.go
//
// Collaborative item catalog data service for jam-build
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of jam-build-cmdb.
// jam-build-cmdb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// jam-build-cmdb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with jam-build-cmdb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package types

import (
	"encoding/json"
	"strings"
)

// FlexList accepts either a JSON array or a single JSON value, so clients may
// send "tags": "sf" or "tags": ["sf", "classic"].
type FlexList[T any] []T

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexList[T]) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	if data[0] == '[' {
		var slice []T
		if err := json.Unmarshal(data, &slice); err != nil {
			return err
		}
		*f = FlexList[T](slice)
		return nil
	}

	var item T
	if err := json.Unmarshal(data, &item); err != nil {
		return err
	}
	*f = FlexList[T]{item}
	return nil
}

// Slice returns the underlying slice.
func (f FlexList[T]) Slice() []T {
	return []T(f)
}

// FormList builds a string list from repeated multipart form values. A value
// holding a JSON array is expanded in place; anything else is taken verbatim.
func FormList(values []string) FlexList[string] {
	var out FlexList[string]
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if strings.HasPrefix(trimmed, "[") {
			var list []string
			if err := json.Unmarshal([]byte(trimmed), &list); err == nil {
				out = append(out, list...)
				continue
			}
		}
		out = append(out, v)
	}
	return out
}

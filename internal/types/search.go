/*
 * Copyright 2025 Cong Wang
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package types

import (
	"fmt"
	"strings"
)

// SearchFilterType selects which metadata surface a filter matches against
type SearchFilterType string

const (
	FilterEverything  SearchFilterType = "everything"
	FilterName        SearchFilterType = "name"
	FilterDescription SearchFilterType = "description"
	FilterGroup       SearchFilterType = "group"
	FilterLabels      SearchFilterType = "labels"
	FilterProperties  SearchFilterType = "properties"
)

// SearchFilter is one predicate over artifact metadata. Multiple filters in
// a request are AND-combined.
type SearchFilter struct {
	Type  SearchFilterType
	Value string
}

// OrderBy selects the search result sort key
type OrderBy string

const (
	OrderByName      OrderBy = "name"
	OrderByCreatedOn OrderBy = "createdOn"
)

// OrderDirection selects ascending or descending ordering
type OrderDirection string

const (
	OrderAsc  OrderDirection = "asc"
	OrderDesc OrderDirection = "desc"
)

// ParseOrderBy normalizes a string to an OrderBy key
func ParseOrderBy(value string) (OrderBy, error) {
	switch OrderBy(value) {
	case OrderByName, OrderByCreatedOn:
		return OrderBy(value), nil
	case "":
		return OrderByName, nil
	default:
		return "", fmt.Errorf("unknown order key: %s", value)
	}
}

// ParseOrderDirection normalizes a string to an OrderDirection
func ParseOrderDirection(value string) (OrderDirection, error) {
	switch OrderDirection(strings.ToLower(value)) {
	case OrderAsc, OrderDesc:
		return OrderDirection(strings.ToLower(value)), nil
	case "":
		return OrderAsc, nil
	default:
		return "", fmt.Errorf("unknown order direction: %s", value)
	}
}

// Package manifest groups plugin manifest records into display categories.
//
// # Overview
//
// Aggregation takes a flat list of plugin records, derives a category and a
// tag set for each one, computes usage-relative display fields and returns
// the records grouped by category in a caller-selected order.
//
// # Category Derivation
//
// The first rule that yields a non-empty value wins:
//
//  1. the explicit category field
//  2. the second-to-last segment of the path ("tools/search/run.py" -> "search")
//  3. the second-to-last segment of a slash-delimited name
//  4. the part of the name before the first underscore ("foo_bar" -> "foo")
//  5. "Uncategorized"
//
// # Usage Example
//
//	records, err := manifest.DecodeFile("plugins.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := manifest.Aggregate(records, manifest.SortByUsage)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	for _, group := range result.Groups {
//		fmt.Printf("%s (%d)\n", group.Category, len(group.Plugins))
//	}
//
// Categories keep the order in which they first appear in the input. Sorting
// only reorders the records inside each category.
//
// # Related Packages
//
//   - pkg/catalog: Loads records from a manifest source and caches results
//   - pkg/usage: Supplies usage counters merged into records
package manifest

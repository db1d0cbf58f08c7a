// Package dataframe models the billing records ("dataframes") returned by the
// CloudKitty storage API and checks them against a provisioned resource.
//
// The API has answered with three shapes over its versions: an object with a
// "dataframes" key, a bare list, or a single record. Parse classifies a body
// into a Response tagged with its Kind, and Normalize is the only place that
// turns any Kind into a flat []Record:
//
//	resp, _ := dataframe.Parse(body)
//	rec, err := dataframe.Validate(resp, dataframe.Expectation{
//	    ResourceID: vol.ID,
//	    ProjectID:  vol.ProjectID,
//	    UserID:     vol.UserID,
//	    Service:    "volume.size",
//	})
//
// Validate never falls back to the first record: an empty response fails with
// ErrNoDataframes and a response without the resource fails with ErrNoMatchingRecord.
package dataframe

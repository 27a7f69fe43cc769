// Package plantid adapts the plant.id v3 API to the identification.Provider
// interface.
//
// plant.id is the richest provider: besides species classification it returns
// taxonomy, GBIF references, edible parts, and an optional health assessment
// with disease candidates. The client posts base64 image payloads, retries
// once on transient server errors, and normalizes raw probabilities into the
// canonical [0,1] confidence scale.
package plantid

// Package plantnet adapts the Pl@ntNet v2 API to the identification.Provider
// interface.
//
// Pl@ntNet takes multipart image uploads with optional organ hints and returns
// scored species matches with authorship and GBIF references. It reports no
// health data. A 404 from the API means no species matched and is normalized
// to an empty suggestion list rather than an error.
package plantnet

// Package options holds the user's client settings.
//
// Every recognized setting is a typed field on Options with a default from
// Defaults. Settings persist one record per setting in the store's options
// collection, keyed by the setting's JSON name, so unknown keys written by
// other versions are ignored and missing keys fall back to their defaults.
package options

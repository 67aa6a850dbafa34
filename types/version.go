package types

// Version is the Ocean core version.
//
// Update on release. CLI `--version` and the version command read this.
const Version = "0.1.0"

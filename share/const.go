package share

// VERSION Relay Gateway Version
const VERSION = "0.3.1"

// PRVERSION Relay Gateway PR Commit
const PRVERSION = "DEV"

// BUILDNAME The name of the artifact
const BUILDNAME = "relay"

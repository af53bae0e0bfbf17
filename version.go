package uc2

// Version is the library version. Release builds set it with
// -ldflags "-X github.com/meigma/uc2.Version=v1.2.3".
var Version = "dev"

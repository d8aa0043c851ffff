package cmd

// RootFlagDescription describes the project root positional argument shared by commands operating on a
// cloned project.
const RootFlagDescription = "path to the root directory of the cloned project (default is the current working directory)"

package daemon

import "os"

// hardExit is a var so tests can stub it out instead of terminating the
// test binary (spec §4.9: "a watchdog task hard-exits the process after
// a deadline... to survive stuck subsystems").
var hardExit = os.Exit

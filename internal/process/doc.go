// Package process supervises helper daemons the node depends on.
//
// On Linux hosts the link is usually brought up by a supplicant daemon
// (wpa_supplicant, iwd) that must be running before the station can acquire
// an address. The Supervisor starts such a daemon in its own process group,
// relays its output to the logger, restarts it on unexpected exit with
// exponential backoff, and stops it with SIGTERM then SIGKILL.
//
//	sup := process.NewSupervisor(process.Config{
//	    Name:   "wpa_supplicant",
//	    Binary: "/usr/sbin/wpa_supplicant",
//	    Args:   []string{"-i", "wlan0", "-c", "/run/horn/wpa.conf"},
//	})
//	if err := sup.Start(ctx); err != nil {
//	    return err
//	}
//	defer sup.Stop()
package process

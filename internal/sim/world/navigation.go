package world

// Waypoint names a navigation target known to the host (scene, client).
type Waypoint string

// Navigator supplies the two places customers walk to. The world only decides
// when a customer should go somewhere; moving it and reporting ARRIVED is the
// host's job.
type Navigator interface {
	Dropoff() (Waypoint, bool)
	Exit() (Waypoint, bool)
}

// StaticNavigator serves fixed waypoints. An empty waypoint is reported as
// unavailable.
type StaticNavigator struct {
	DropoffPoint Waypoint
	ExitPoint    Waypoint
}

func (n StaticNavigator) Dropoff() (Waypoint, bool) { return n.DropoffPoint, n.DropoffPoint != "" }
func (n StaticNavigator) Exit() (Waypoint, bool)    { return n.ExitPoint, n.ExitPoint != "" }

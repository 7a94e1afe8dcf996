package mqtt

import "fmt"

// TopicPrefixNode is the base for node housekeeping topics.
const TopicPrefixNode = "hornnode"

// Topics provides builders for node housekeeping topics.
// The actuation topic itself comes from configuration.
type Topics struct{}

// NodeStatus returns the retained online/offline topic for a client.
//
// Example: hornnode/horn-node/status
func (Topics) NodeStatus(clientID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixNode, clientID)
}

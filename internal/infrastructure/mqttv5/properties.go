package mqttv5

import "github.com/eclipse/paho.golang/paho"

// toUserProperties converts an attachment to MQTT 5 user properties.
// Keys are emitted in no particular order.
func toUserProperties(attachment map[string][]byte) paho.UserProperties {
	if len(attachment) == 0 {
		return nil
	}
	props := make(paho.UserProperties, 0, len(attachment))
	for k, v := range attachment {
		props = append(props, paho.UserProperty{Key: k, Value: string(v)})
	}
	return props
}

// fromUserProperties rebuilds an attachment. A message without user
// properties has a nil attachment. Repeated keys keep the first value.
func fromUserProperties(props *paho.PublishProperties) map[string][]byte {
	if props == nil || len(props.User) == 0 {
		return nil
	}
	attachment := make(map[string][]byte, len(props.User))
	for _, p := range props.User {
		if _, seen := attachment[p.Key]; seen {
			continue
		}
		attachment[p.Key] = []byte(p.Value)
	}
	return attachment
}

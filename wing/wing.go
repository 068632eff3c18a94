package wing

// The WING remote-control protocol provides access to the parameter tree of
// a WING family mixing console over TCP. Parameters are addressed by stable
// 32-bit node ids; the console describes each node with a definition record
// (type, unit, range, enumerations) and carries current values as typed data
// frames on an escape-coded byte stream.

// Package force provides potential-energy models for point masses around a
// central gravitational source.
//
// Every model implements [dynamo.ForceModel]:
//
//   - [CentralGravity]: E = -GM Σ mᵢ/|rᵢ| with the closed-form gradient
//   - [FiniteDifference]: any [PotentialFunc], forces by central differences
//
// Models are pure functions of the system state. A particle at the origin
// is outside the model's domain and yields [dynamo.ErrDomain]; forces are
// never returned as NaN or Inf.
package force

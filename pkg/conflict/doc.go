// Package conflict picks exactly one version per library from a candidate
// graph.
//
// The policy, in order:
//
//  1. a direct dependency wins outright;
//  2. a pin overrides the remaining rules; a pin naming a version that was
//     never a candidate is stale and fails with VERSION_CONFLICT;
//  3. the candidate nearest to a direct dependency wins;
//  4. among equally near candidates the highest version wins.
//
// A pin that contradicts a direct dependency is a VERSION_CONFLICT as well.
//
// After the choice, edges that pointed at a losing version are re-pointed
// at the winner, and libraries that only losers depended on are pruned.
package conflict

/*
Package crypto provides the basis for secure synchronization between lwwdict
replicas. Other than making a proper TLS configuration for internal usage
available, it also provides the functions to set up the needed internal PKI
for mutually authenticated communication between replicas.
*/
package crypto
